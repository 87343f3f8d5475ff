package models

import (
	"errors"
	"testing"
	"time"

	"github.com/taskmate/backend/internal/config"
	"gorm.io/gorm"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		want     bool
	}{
		{RequestPending, RequestApproved, true},
		{RequestPending, RequestRejected, true},
		{RequestPending, RequestWithdrawn, true},
		{RequestPending, RequestPending, false},
		{RequestApproved, RequestRejected, false},
		{RequestApproved, RequestPending, false},
		{RequestRejected, RequestApproved, false},
		{RequestWithdrawn, RequestPending, false},
		{RequestStatus("BOGUS"), RequestApproved, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRequestStatus_IsTerminal(t *testing.T) {
	if RequestPending.IsTerminal() {
		t.Error("PENDING must not be terminal")
	}
	for _, s := range []RequestStatus{RequestApproved, RequestRejected, RequestWithdrawn} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if RequestStatus("BOGUS").IsTerminal() {
		t.Error("unknown status should not report terminal")
	}
	if RequestStatus("BOGUS").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestProject_HasCapacity(t *testing.T) {
	p := &Project{TeamSize: 2}
	if !p.HasCapacity(0) {
		t.Error("owner alone in a team of 2 should have capacity")
	}
	if p.HasCapacity(1) {
		t.Error("owner plus one member fills a team of 2")
	}

	solo := &Project{TeamSize: 1}
	if solo.HasCapacity(0) {
		t.Error("team of 1 is full with just the owner")
	}
}

func TestMessage_After(t *testing.T) {
	now := time.Now().UTC()
	a := &Message{ID: 1, CreatedAt: now}
	b := &Message{ID: 2, CreatedAt: now}
	c := &Message{ID: 0, CreatedAt: now.Add(time.Second)}

	if !b.After(a) || a.After(b) {
		t.Error("equal timestamps should be ordered by id")
	}
	if !c.After(b) {
		t.Error("later timestamp should win over higher id")
	}
	if !a.After(nil) {
		t.Error("any message is after nil")
	}
}

func TestUser_DisplayName(t *testing.T) {
	var nilUser *User
	if nilUser.DisplayName() != "Unknown user" {
		t.Error("nil user should have fallback name")
	}
	if (&User{Name: "Ada"}).DisplayName() != "Ada" {
		t.Error("named user should use its name")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestMigrate_PendingIndexRejectsSecondPending(t *testing.T) {
	db := openMemory(t)

	first := JoinRequest{ProjectID: 1, UserID: 2, Status: RequestPending}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := JoinRequest{ProjectID: 1, UserID: 2, Status: RequestPending}
	err := db.Create(&second).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("second pending insert error = %v, want ErrDuplicatedKey", err)
	}

	// Terminal rows do not count against the index.
	if err := db.Model(&first).Update("status", RequestWithdrawn).Error; err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	third := JoinRequest{ProjectID: 1, UserID: 2, Status: RequestPending}
	if err := db.Create(&third).Error; err != nil {
		t.Fatalf("re-request after withdraw: %v", err)
	}
}

func TestUser_SkillsRoundTrip(t *testing.T) {
	db := openMemory(t)

	u := User{ID: 7, Name: "Ada", Skills: []string{"go", "sql"}}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	var got User
	if err := db.First(&got, 7).Error; err != nil {
		t.Fatalf("first: %v", err)
	}
	if len(got.Skills) != 2 || got.Skills[0] != "go" {
		t.Errorf("Skills = %v", got.Skills)
	}
}

func TestSeedDefaultData_Idempotent(t *testing.T) {
	db := openMemory(t)

	for i := 0; i < 2; i++ {
		if err := SeedDefaultData(db); err != nil {
			t.Fatalf("SeedDefaultData() run %d error = %v", i, err)
		}
	}

	var count int64
	db.Model(&SystemConfig{}).Where("config_key = ?", ConfigLogRetentionDays).Count(&count)
	if count != 1 {
		t.Errorf("retention config rows = %d, want 1", count)
	}
}
