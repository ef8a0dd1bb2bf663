package postgres

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// testDSN is set by TestMain once the embedded instance is listening, so
// every test in this package can open its own pool against it.
var testDSN string

const (
	embeddedUser     = "duragraph_test"
	embeddedPassword = "duragraph_test"
	embeddedDatabase = "duragraph_test"
)

// TestMain starts a real, ephemeral PostgreSQL server on a free port,
// applies the repo's own migrations/ directory against it, then runs the
// package's tests. This exercises ExecutionRepository and GraphRepository
// against the same schema `duragraph migrate` would apply in production,
// rather than against mocks.
func TestMain(m *testing.M) {
	os.Exit(runWithEmbeddedDB(m))
}

func runWithEmbeddedDB(m *testing.M) int {
	port, err := freePort()
	if err != nil {
		fmt.Fprintln(os.Stderr, "embedded postgres: find free port:", err)
		return 1
	}

	dataDir := filepath.Join(os.TempDir(), fmt.Sprintf("duragraph-epg-%d", port))
	os.RemoveAll(dataDir)

	epg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(embeddedUser).
			Password(embeddedPassword).
			Database(embeddedDatabase).
			RuntimePath(dataDir),
	)
	if err := epg.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "embedded postgres: start:", err)
		return 1
	}
	defer func() {
		_ = epg.Stop()
		os.RemoveAll(dataDir)
	}()

	testDSN = fmt.Sprintf("postgres://%s:%s@127.0.0.1:%d/%s?sslmode=disable",
		embeddedUser, embeddedPassword, port, embeddedDatabase)

	migrationsPath, err := filepath.Abs(filepath.Join("..", "..", "..", "..", "migrations"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "embedded postgres: locate migrations:", err)
		return 1
	}

	mig, err := migrate.New("file://"+migrationsPath, testDSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, "embedded postgres: init migrator:", err)
		return 1
	}
	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		fmt.Fprintln(os.Stderr, "embedded postgres: apply migrations:", err)
		return 1
	}
	_, _ = mig.Close()

	return m.Run()
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
