package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sitepass/sitepass-backend/internal/logger"
)

// schema mirrors the production tables without the postgres-only defaults, so
// sqlite can host repository and service tests. Timestamp columns keep a
// CURRENT_TIMESTAMP default because the models leave them for the database to
// fill.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS "site" (
	"id" text PRIMARY KEY,
	"name" text NOT NULL,
	"address" text,
	"timezone" text NOT NULL DEFAULT 'Asia/Shanghai',
	"default_access_start" text NOT NULL DEFAULT '06:00:00',
	"default_access_end" text NOT NULL DEFAULT '20:00:00',
	"default_training_deadline" text NOT NULL DEFAULT '09:00:00',
	"is_active" numeric NOT NULL DEFAULT 1,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "contractor" (
	"id" text PRIMARY KEY,
	"site_id" text NOT NULL,
	"name" text NOT NULL,
	"contact" text,
	"phone" text,
	"is_active" numeric NOT NULL DEFAULT 1,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "worker" (
	"id" text PRIMARY KEY,
	"site_id" text NOT NULL,
	"contractor_id" text NOT NULL,
	"name" text NOT NULL,
	"id_no" text NOT NULL,
	"phone" text,
	"job_type" text,
	"face_id" text,
	"wechat_open_id" text,
	"is_bound" numeric NOT NULL DEFAULT 0,
	"is_active" numeric NOT NULL DEFAULT 1,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "work_area" (
	"id" text PRIMARY KEY,
	"site_id" text NOT NULL,
	"name" text NOT NULL,
	"access_group_id" text,
	"risk_level" text,
	"is_active" numeric NOT NULL DEFAULT 1,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "training_video" (
	"id" text PRIMARY KEY,
	"site_id" text NOT NULL,
	"title" text NOT NULL,
	"file_url" text,
	"duration_sec" integer NOT NULL,
	"required_watch_percent" real NOT NULL DEFAULT 0.95,
	"is_active" numeric NOT NULL DEFAULT 1,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "sys_user" (
	"id" text PRIMARY KEY,
	"username" text NOT NULL,
	"password_hash" text NOT NULL,
	"display_name" text,
	"role" text NOT NULL,
	"contractor_id" text,
	"site_id" text,
	"is_active" numeric NOT NULL DEFAULT 1,
	"last_login_at" datetime,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("username")
)`,
	`CREATE TABLE IF NOT EXISTS "work_ticket" (
	"id" text PRIMARY KEY,
	"site_id" text NOT NULL,
	"contractor_id" text NOT NULL,
	"title" text NOT NULL,
	"remark" text,
	"start_date" datetime NOT NULL,
	"end_date" datetime NOT NULL,
	"default_access_start" text NOT NULL,
	"default_access_end" text NOT NULL,
	"default_training_deadline" text NOT NULL,
	"notify_on_publish" numeric NOT NULL DEFAULT 1,
	"daily_reminder_enabled" numeric NOT NULL DEFAULT 1,
	"status" text NOT NULL DEFAULT 'DRAFT',
	"created_by" text,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "work_ticket_worker" (
	"id" text PRIMARY KEY,
	"ticket_id" text NOT NULL,
	"worker_id" text NOT NULL,
	"site_id" text NOT NULL,
	"status" text NOT NULL DEFAULT 'ACTIVE',
	"added_at" datetime NOT NULL,
	"added_by" text,
	"removed_at" datetime,
	"removed_by" text,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("ticket_id", "worker_id")
)`,
	`CREATE TABLE IF NOT EXISTS "work_ticket_area" (
	"id" text PRIMARY KEY,
	"ticket_id" text NOT NULL,
	"area_id" text NOT NULL,
	"site_id" text NOT NULL,
	"status" text NOT NULL DEFAULT 'ACTIVE',
	"added_at" datetime NOT NULL,
	"added_by" text,
	"removed_at" datetime,
	"removed_by" text,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("ticket_id", "area_id")
)`,
	`CREATE TABLE IF NOT EXISTS "work_ticket_video" (
	"id" text PRIMARY KEY,
	"ticket_id" text NOT NULL,
	"video_id" text NOT NULL,
	"site_id" text NOT NULL,
	"required_watch_percent" real NOT NULL DEFAULT 0.95,
	"status" text NOT NULL DEFAULT 'ACTIVE',
	"added_at" datetime NOT NULL,
	"added_by" text,
	"removed_at" datetime,
	"removed_by" text,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("ticket_id", "video_id")
)`,
	`CREATE TABLE IF NOT EXISTS "daily_ticket" (
	"id" text PRIMARY KEY,
	"ticket_id" text NOT NULL,
	"site_id" text NOT NULL,
	"date" datetime NOT NULL,
	"access_start" text NOT NULL,
	"access_end" text NOT NULL,
	"training_deadline" text NOT NULL,
	"status" text NOT NULL DEFAULT 'PUBLISHED',
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("ticket_id", "date")
)`,
	`CREATE TABLE IF NOT EXISTS "daily_ticket_worker" (
	"id" text PRIMARY KEY,
	"daily_ticket_id" text NOT NULL,
	"worker_id" text NOT NULL,
	"site_id" text NOT NULL,
	"total_video_count" integer NOT NULL DEFAULT 0,
	"completed_video_count" integer NOT NULL DEFAULT 0,
	"training_status" text NOT NULL DEFAULT 'NOT_STARTED',
	"authorized" numeric NOT NULL DEFAULT 0,
	"last_notify_at" datetime,
	"notify_count" integer NOT NULL DEFAULT 0,
	"status" text NOT NULL DEFAULT 'ACTIVE',
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("daily_ticket_id", "worker_id")
)`,
	`CREATE TABLE IF NOT EXISTS "daily_ticket_snapshot" (
	"id" text PRIMARY KEY,
	"daily_ticket_id" text NOT NULL,
	"site_id" text NOT NULL,
	"kind" text NOT NULL,
	"entity_id" text NOT NULL,
	"entity_name" text,
	"meta" text,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "training_session" (
	"id" text PRIMARY KEY,
	"daily_ticket_id" text NOT NULL,
	"worker_id" text NOT NULL,
	"video_id" text NOT NULL,
	"site_id" text NOT NULL,
	"status" text NOT NULL DEFAULT 'NOT_STARTED',
	"session_token" text NOT NULL,
	"started_at" datetime,
	"ended_at" datetime,
	"valid_watch_sec" integer NOT NULL DEFAULT 0,
	"total_watch_sec" integer NOT NULL DEFAULT 0,
	"last_position" integer NOT NULL DEFAULT 0,
	"last_heartbeat_ts" integer,
	"random_check_passed" integer NOT NULL DEFAULT 0,
	"random_check_failed" integer NOT NULL DEFAULT 0,
	"consecutive_check_failures" integer NOT NULL DEFAULT 0,
	"last_check_at" datetime,
	"suspicious_event_count" integer NOT NULL DEFAULT 0,
	"failure_reason" text,
	"video_state" text NOT NULL DEFAULT 'unknown',
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("daily_ticket_id", "worker_id", "video_id")
)`,
	`CREATE TABLE IF NOT EXISTS "access_grant" (
	"id" text PRIMARY KEY,
	"daily_ticket_id" text NOT NULL,
	"worker_id" text NOT NULL,
	"area_id" text NOT NULL,
	"site_id" text NOT NULL,
	"valid_from" datetime NOT NULL,
	"valid_to" datetime NOT NULL,
	"status" text NOT NULL DEFAULT 'PENDING_SYNC',
	"sync_attempt_count" integer NOT NULL DEFAULT 0,
	"last_sync_at" datetime,
	"sync_error_msg" text,
	"vendor_ref" text,
	"revoked_at" datetime,
	"revoke_reason" text,
	"vendor_revoked" numeric NOT NULL DEFAULT 0,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("daily_ticket_id", "worker_id", "area_id")
)`,
	`CREATE TABLE IF NOT EXISTS "access_event" (
	"id" text PRIMARY KEY,
	"site_id" text NOT NULL,
	"vendor_event_id" text,
	"dedup_key" text NOT NULL,
	"device_id" text NOT NULL,
	"device_name" text,
	"worker_id" text,
	"area_id" text,
	"face_id" text,
	"event_time" datetime NOT NULL,
	"direction" text,
	"result" text NOT NULL,
	"reason_code" text,
	"reason_message" text,
	"confidence" real,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE("dedup_key")
)`,
	`CREATE TABLE IF NOT EXISTS "audit_log" (
	"id" text PRIMARY KEY,
	"site_id" text,
	"operator_id" text,
	"operator_name" text,
	"action" text NOT NULL,
	"resource_type" text NOT NULL,
	"resource_id" text,
	"old_value" text,
	"new_value" text,
	"reason" text,
	"ip" text,
	"request_id" text,
	"is_success" numeric NOT NULL DEFAULT 1,
	"error_message" text,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "notification_log" (
	"id" text PRIMARY KEY,
	"site_id" text,
	"worker_id" text,
	"user_id" text,
	"kind" text NOT NULL,
	"priority" integer NOT NULL DEFAULT 3,
	"channel" text NOT NULL DEFAULT 'wechat',
	"title" text NOT NULL,
	"body" text,
	"payload" text,
	"dedup_key" text,
	"status" text NOT NULL DEFAULT 'PENDING',
	"attempt_count" integer NOT NULL DEFAULT 0,
	"last_error" text,
	"sent_at" datetime,
	"read_at" datetime,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS "alert" (
	"id" text PRIMARY KEY,
	"site_id" text,
	"type" text NOT NULL,
	"priority" text NOT NULL,
	"status" text NOT NULL DEFAULT 'UNACKNOWLEDGED',
	"title" text NOT NULL,
	"details" text,
	"dedup_key" text,
	"acknowledged_by" text,
	"acknowledged_at" datetime,
	"resolved_by" text,
	"resolved_at" datetime,
	"created_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updated_at" datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
}

// OpenTestDB returns an isolated in-memory database with the full schema.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

// NewTestLogger returns a logger suitable for tests.
func NewTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}
