package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.json")
	return NewStore(path), path
}

func testPolicy(id string) Policy {
	return Policy{
		ID:       id,
		Name:     "Large Transactions",
		DataType: "transaction",
		Rules:    []Rule{{Field: "amount", Operator: ">", Value: float64(4000)}},
	}
}

func TestStore_CreateListDelete(t *testing.T) {
	s, _ := testStore(t)

	if _, err := s.Create(testPolicy("pol-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(testPolicy("pol-2")); err != nil {
		t.Fatalf("create: %v", err)
	}

	policies, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(policies))
	}
	if policies[0].ID != "pol-1" || policies[1].ID != "pol-2" {
		t.Errorf("file order not preserved: %s, %s", policies[0].ID, policies[1].ID)
	}

	if err := s.Delete("pol-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	policies, err = s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(policies) != 1 || policies[0].ID != "pol-2" {
		t.Errorf("unexpected survivors after delete: %+v", policies)
	}
}

func TestStore_AbsentFileIsEmptySet(t *testing.T) {
	s, path := testStore(t)

	policies, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(policies) != 0 {
		t.Errorf("got %d policies from absent file, want 0", len(policies))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("list must not create the file")
	}
}

func TestStore_DuplicateIDLeavesFileUnchanged(t *testing.T) {
	s, path := testStore(t)

	if _, err := s.Create(testPolicy("pol-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	dup := testPolicy("pol-1")
	dup.Name = "Different Name"
	if _, err := s.Create(dup); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Error("failed create modified the policy file")
	}
}

func TestStore_DeleteMissingLeavesFileUnchanged(t *testing.T) {
	s, path := testStore(t)

	if _, err := s.Create(testPolicy("pol-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if err := s.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Error("failed delete modified the policy file")
	}
}

func TestStore_InvalidPolicyRejected(t *testing.T) {
	s, path := testStore(t)

	bad := testPolicy("")
	if _, err := s.Create(bad); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected create must not write the file")
	}
}

func TestStore_ByDataType(t *testing.T) {
	s, _ := testStore(t)

	tx := testPolicy("pol-tx")
	loan := testPolicy("pol-loan")
	loan.DataType = "loan_application"
	for _, p := range []Policy{tx, loan} {
		if _, err := s.Create(p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	matched, err := s.ByDataType("transaction")
	if err != nil {
		t.Fatalf("by data type: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != "pol-tx" {
		t.Errorf("got %+v, want only pol-tx", matched)
	}
}

func TestStore_ReloadFromDisk(t *testing.T) {
	s, path := testStore(t)

	if _, err := s.Create(testPolicy("pol-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A fresh store against the same file sees the persisted set.
	reopened := NewStore(path)
	policies, err := reopened.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(policies) != 1 || policies[0].ID != "pol-1" {
		t.Errorf("reopened store got %+v", policies)
	}
	if policies[0].Rules[0].Value != float64(4000) {
		t.Errorf("rule value round-trip got %v", policies[0].Rules[0].Value)
	}
}
