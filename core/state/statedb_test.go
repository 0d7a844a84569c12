package state

import (
	"math/big"
	"testing"

	"github.com/Mr-H-E/Monorite/core/types"
	"github.com/Mr-H-E/Monorite/storage"
)

func testAccount(balance int64) *types.Account {
	return &types.Account{
		Balance:      big.NewInt(balance),
		TokenBalance: big.NewInt(0),
	}
}

func TestAccountRoundTrip(t *testing.T) {
	st := NewStateDB(storage.NewMemDB())
	addr := []byte("account-under-test--")

	if err := st.PutAccount(addr, testAccount(42)); err != nil {
		t.Fatalf("put account: %v", err)
	}
	account, err := st.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account == nil || account.Balance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("unexpected account: %+v", account)
	}
}

func TestMissingAccountIsNil(t *testing.T) {
	st := NewStateDB(storage.NewMemDB())
	account, err := st.GetAccount([]byte("nobody"))
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account != nil {
		t.Fatalf("expected nil for a missing account, got %+v", account)
	}
}

func TestSnapshotRevertRestoresPriorWrites(t *testing.T) {
	st := NewStateDB(storage.NewMemDB())
	addr := []byte("account-under-test--")
	if err := st.PutAccount(addr, testAccount(10)); err != nil {
		t.Fatalf("put account: %v", err)
	}

	revision := st.Snapshot()
	if err := st.PutAccount(addr, testAccount(99)); err != nil {
		t.Fatalf("overwrite account: %v", err)
	}
	if err := st.KVPut([]byte("new-key"), big.NewInt(7)); err != nil {
		t.Fatalf("kv put: %v", err)
	}

	st.RevertToSnapshot(revision)

	account, err := st.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("revert lost the original value: %s", account.Balance)
	}
	ok, err := st.KVGet([]byte("new-key"), new(big.Int))
	if err != nil {
		t.Fatalf("kv get: %v", err)
	}
	if ok {
		t.Fatalf("reverted key still readable")
	}
}

func TestCommitPersistsToBackingStore(t *testing.T) {
	db := storage.NewMemDB()
	st := NewStateDB(db)
	addr := []byte("account-under-test--")
	if err := st.PutAccount(addr, testAccount(5)); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reopened := NewStateDB(db)
	account, err := reopened.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account == nil || account.Balance.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("committed account not visible after reopen: %+v", account)
	}
}

func TestRevertAfterCommitIsScoped(t *testing.T) {
	st := NewStateDB(storage.NewMemDB())
	addr := []byte("account-under-test--")
	if err := st.PutAccount(addr, testAccount(1)); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	revision := st.Snapshot()
	if err := st.PutAccount(addr, testAccount(2)); err != nil {
		t.Fatalf("put account: %v", err)
	}
	st.RevertToSnapshot(revision)

	account, err := st.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("revert crossed a commit boundary: %s", account.Balance)
	}
}
