package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckr3453/db-backup4j/internal/destination"
	"github.com/ckr3453/db-backup4j/internal/destination/s3"
	"github.com/ckr3453/db-backup4j/internal/history"
	"github.com/ckr3453/db-backup4j/internal/model"
	"github.com/ckr3453/db-backup4j/internal/notify"
)

// New never opens a source connection, so it's exercisable without a
// live database the same way dump.Engine and history.gormStore are not.

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(model.BackupConfig{}, "/tmp/run.lock", model.ChecksumSHA256)
	require.Error(t, err)
}

func TestNew_WiresLocalDestinationOnly(t *testing.T) {
	cfg := model.BackupConfig{
		Database: model.DatabaseConfig{URL: "jdbc:mysql://localhost/app"},
		Local:    model.LocalDestinationConfig{Enabled: true, Directory: "/data"},
	}
	o, err := New(cfg, "/tmp/run.lock", model.ChecksumSHA256)
	require.NoError(t, err)
	require.Len(t, o.Destinations, 1)
	_, isLocal := o.Destinations[0].(*destination.Local)
	require.True(t, isLocal)
}

func TestNew_WiresRemoteDestinationOnly(t *testing.T) {
	cfg := model.BackupConfig{
		Database: model.DatabaseConfig{URL: "jdbc:mysql://localhost/app"},
		Remote: model.RemoteDestinationConfig{
			Enabled: true, Bucket: "b", Region: "us-east-1", AccessKey: "ak", SecretKey: "sk",
		},
	}
	o, err := New(cfg, "/tmp/run.lock", model.ChecksumSHA256)
	require.NoError(t, err)
	require.Len(t, o.Destinations, 1)
	_, isS3 := o.Destinations[0].(*s3.Destination)
	require.True(t, isS3)
}

func TestNew_WiresBothDestinationsInOrder(t *testing.T) {
	cfg := model.BackupConfig{
		Database: model.DatabaseConfig{URL: "jdbc:mysql://localhost/app"},
		Local:    model.LocalDestinationConfig{Enabled: true, Directory: "/data"},
		Remote: model.RemoteDestinationConfig{
			Enabled: true, Bucket: "b", Region: "us-east-1", AccessKey: "ak", SecretKey: "sk",
		},
	}
	o, err := New(cfg, "/tmp/run.lock", model.ChecksumSHA256)
	require.NoError(t, err)
	require.Len(t, o.Destinations, 2)
}

func TestNew_DefaultsHistoryAndNotifierToNoOps(t *testing.T) {
	cfg := model.BackupConfig{
		Database: model.DatabaseConfig{URL: "jdbc:mysql://localhost/app"},
		Local:    model.LocalDestinationConfig{Enabled: true, Directory: "/data"},
	}
	o, err := New(cfg, "/tmp/run.lock", model.ChecksumSHA256)
	require.NoError(t, err)
	require.Equal(t, history.NoOpStore{}, o.History)
	require.Equal(t, notify.NoOp{}, o.Notifier)
}

func TestJoinErrors_CombinesMessagesWithSemicolons(t *testing.T) {
	err := joinErrors([]error{errors.New("first"), errors.New("second")})
	require.EqualError(t, err, "first; second")
}

func TestJoinErrors_SingleError(t *testing.T) {
	err := joinErrors([]error{errors.New("only")})
	require.EqualError(t, err, "only")
}
