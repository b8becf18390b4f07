package repository

import (
	"regexp"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type statement struct {
	sql  string
	vars []interface{}
}

type recorder struct {
	mu    sync.Mutex
	stmts []statement
}

func (r *recorder) record(tx *gorm.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, statement{
		sql:  tx.Statement.SQL.String(),
		vars: append([]interface{}(nil), tx.Statement.Vars...),
	})
}

func (r *recorder) last(t *testing.T) statement {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stmts) == 0 {
		t.Fatalf("no statement was built")
	}
	return r.stmts[len(r.stmts)-1]
}

// newDryRunDB builds SQL with the postgres dialect without connecting.
func newDryRunDB(t *testing.T) (*gorm.DB, *recorder) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 user=parkinghub dbname=parkinghub sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	rec := &recorder{}
	cb := db.Callback()
	if err := cb.Query().After("gorm:query").Register("test:record_query", rec.record); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	if err := cb.Update().After("gorm:update").Register("test:record_update", rec.record); err != nil {
		t.Fatalf("register update callback: %v", err)
	}
	if err := cb.Create().After("gorm:create").Register("test:record_create", rec.record); err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	return db, rec
}

func mustMatch(t *testing.T, sql, pattern string) {
	t.Helper()
	if !regexp.MustCompile(pattern).MatchString(sql) {
		t.Fatalf("sql %q does not match %q", sql, pattern)
	}
}

func mustNotMatch(t *testing.T, sql, pattern string) {
	t.Helper()
	if regexp.MustCompile(pattern).MatchString(sql) {
		t.Fatalf("sql %q unexpectedly matches %q", sql, pattern)
	}
}

func hasVar(vars []interface{}, want interface{}) bool {
	for _, v := range vars {
		if v == want {
			return true
		}
	}
	return false
}
