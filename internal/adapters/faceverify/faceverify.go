package faceverify

import "context"

// VerifyResult is the outcome of matching a live capture against a worker's
// enrolled face.
type VerifyResult struct {
	Passed     bool
	Confidence float64
}

// Client verifies a worker's presence during training checks and binds faces
// at enrollment.
type Client interface {
	Enroll(ctx context.Context, workerIDNo string, photoBase64 string) (faceID string, err error)
	Verify(ctx context.Context, faceID string, photoBase64 string) (*VerifyResult, error)
}
