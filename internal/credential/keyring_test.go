package credential

import (
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/peternagy/mongoexplorer/internal/types"
)

func TestSecretsRoundTrip(t *testing.T) {
	keyring.MockInit()
	svc := NewService()

	cfg := types.ServerConfiguration{
		ID:       "srv-1",
		Password: "db-pass",
		SSHTunneling: types.SSHTunnelingConfiguration{
			ProxyURL:             "bastion",
			ProxyPassword:        "ssh-pass",
			PrivateKeyPassphrase: "phrase",
		},
	}
	if err := svc.SaveSecrets(cfg); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	loaded := types.ServerConfiguration{ID: "srv-1"}
	if err := svc.LoadSecrets(&loaded); err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}
	if loaded.Password != "db-pass" {
		t.Errorf("Password = %q", loaded.Password)
	}
	if loaded.SSHTunneling.ProxyPassword != "ssh-pass" || loaded.SSHTunneling.PrivateKeyPassphrase != "phrase" {
		t.Errorf("SSH secrets = %+v", loaded.SSHTunneling)
	}
}

func TestSaveSecretsClearsEmptyValues(t *testing.T) {
	keyring.MockInit()
	svc := NewService()

	if err := svc.SaveSecrets(types.ServerConfiguration{ID: "srv-2", Password: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.SaveSecrets(types.ServerConfiguration{ID: "srv-2"}); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	loaded := types.ServerConfiguration{ID: "srv-2", Password: "stale"}
	if err := svc.LoadSecrets(&loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.Password != "" {
		t.Errorf("Password = %q, want cleared", loaded.Password)
	}
}

func TestDeleteSecrets(t *testing.T) {
	keyring.MockInit()
	svc := NewService()

	if err := svc.SaveSecrets(types.ServerConfiguration{ID: "srv-3", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteSecrets("srv-3"); err != nil {
		t.Fatalf("DeleteSecrets() error = %v", err)
	}
	// Deleting again is not an error
	if err := svc.DeleteSecrets("srv-3"); err != nil {
		t.Fatalf("second DeleteSecrets() error = %v", err)
	}

	loaded := types.ServerConfiguration{ID: "srv-3"}
	if err := svc.LoadSecrets(&loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.Password != "" {
		t.Errorf("Password = %q after delete", loaded.Password)
	}
}

func TestSecretsRequireID(t *testing.T) {
	keyring.MockInit()
	svc := NewService()

	if err := svc.SaveSecrets(types.ServerConfiguration{Password: "pw"}); err == nil {
		t.Error("SaveSecrets() without ID should fail")
	}
	if err := svc.LoadSecrets(&types.ServerConfiguration{}); err == nil {
		t.Error("LoadSecrets() without ID should fail")
	}
}
