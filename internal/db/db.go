package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/vitals.link/internal/monitoring"
	"github.com/banshee-data/vitals.link/internal/receiver"
)

var logf = monitoring.Prefixed("db")

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the sqlite database at path and brings
// its schema up to date.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Reading is a stored frame summary.
type Reading struct {
	ID            string    `json:"id"`
	ReceivedAt    time.Time `json:"received_at"`
	Source        string    `json:"source"`
	HeartRate     int       `json:"heart_rate"`
	SpO2          int       `json:"spo2"`
	SQI           int       `json:"sqi"`
	SNR           float64   `json:"snr"`
	BitCount      int       `json:"bit_count"`
	AlarmPriority string    `json:"alarm_priority"`
	Payload       string    `json:"payload"`
}

// RecordFrame stores the summary of f. It implements receiver.Recorder.
func (db *DB) RecordFrame(f receiver.Frame) error {
	_, err := db.Exec(
		`INSERT INTO readings (
			reading_id, received_unix_nanos, source, heart_rate, spo2,
			sqi, snr, bit_count, alarm_priority, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ReceivedAt.UnixNano(), f.Source, f.Sample.HeartRate, f.Sample.SpO2,
		f.Metrics.SQI, f.Metrics.SNR, len(f.Bits), f.Alarm.Priority.String(), f.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to record reading %s: %w", f.ID, err)
	}
	return nil
}

// RecentReadings returns up to limit readings, newest first.
func (db *DB) RecentReadings(limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT reading_id, received_unix_nanos, source, heart_rate, spo2,
			sqi, snr, bit_count, alarm_priority, payload
		FROM readings
		ORDER BY received_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		var r Reading
		var nanos int64
		if err := rows.Scan(&r.ID, &nanos, &r.Source, &r.HeartRate, &r.SpO2,
			&r.SQI, &r.SNR, &r.BitCount, &r.AlarmPriority, &r.Payload); err != nil {
			return nil, err
		}
		r.ReceivedAt = time.Unix(0, nanos).UTC()
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

// CountReadings returns the number of stored readings.
func (db *DB) CountReadings() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM readings`).Scan(&n)
	return n, err
}

// AttachAdminRoutes mounts a tailsql console and a backup download under
// /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Vitals link readings",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.handleBackup))
	return nil
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("vitals-link-backup-%d.db", time.Now().UnixNano()))
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			logf("failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		logf("failed to stream backup: %v", err)
	}
}
