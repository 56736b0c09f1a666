package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"serverbackup/internal/config"
	"serverbackup/internal/logging"
)

// DatabaseDumper abstracts the external database dump mechanism. Each call
// is one synchronous attempt; no retries.
type DatabaseDumper interface {
	// Dump writes a dump of the credential's database into destDir and
	// returns the path of the dump file.
	Dump(ctx context.Context, cred config.DatabaseCredential, destDir string) (string, error)
}

// MysqldumpDumper invokes the mysqldump binary, capturing its stdout into a
// per-database .sql file under the staging directory.
type MysqldumpDumper struct {
	// Binary is the dump executable, overridable for tests
	Binary string

	// PreflightPing verifies each credential with a driver-level ping
	// before mysqldump spawns, so bad credentials fail fast with a clear
	// error instead of a mysqldump usage message.
	PreflightPing bool

	logger *logging.Logger
}

// NewMysqldumpDumper creates a mysqldump-backed DatabaseDumper
func NewMysqldumpDumper(logger *logging.Logger) *MysqldumpDumper {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &MysqldumpDumper{
		Binary:        "mysqldump",
		PreflightPing: true,
		logger:        logger,
	}
}

// Dump runs mysqldump for one database
func (d *MysqldumpDumper) Dump(ctx context.Context, cred config.DatabaseCredential, destDir string) (string, error) {
	start := time.Now()

	if d.PreflightPing {
		if err := d.preflight(ctx, cred); err != nil {
			return "", NewDumpError(
				fmt.Sprintf("database %s is not reachable with the configured credentials", cred.Name),
				err,
			).WithContext("database", cred.Name)
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", NewDumpError("failed to create dump directory", err).WithContext("database", cred.Name)
	}

	outputPath := filepath.Join(destDir, cred.Name+".sql")
	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", NewDumpError("failed to create dump file", err).WithContext("database", cred.Name)
	}
	defer outFile.Close()

	args := buildDumpArgs(cred)
	d.logger.WithField("command", strings.Join(logging.SanitizeCommandLine(append([]string{d.Binary}, args...)), " ")).
		Debug("Invoking dump tool")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Stdout = outFile
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var size int64
	if info, err := outFile.Stat(); err == nil {
		size = info.Size()
	}
	d.logger.LogDatabaseDump(cred.Name, outputPath, size, time.Since(start), runErr)

	if runErr != nil {
		return "", NewDumpError(
			fmt.Sprintf("mysqldump failed for database %s: %s", cred.Name, stderrTail(&stderr)),
			runErr,
		).WithContext("database", cred.Name)
	}

	return outputPath, nil
}

// preflight opens a driver-level connection and pings it
func (d *MysqldumpDumper) preflight(ctx context.Context, cred config.DatabaseCredential) error {
	cfg := mysql.NewConfig()
	cfg.User = cred.User
	cfg.Passwd = cred.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", cred.Host, cred.Port)
	cfg.DBName = cred.Name
	cfg.Timeout = 10 * time.Second

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	return pingDatabase(ctx, db)
}

// pingDatabase verifies a database handle is usable
func pingDatabase(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// buildDumpArgs builds the mysqldump argument list for one credential
func buildDumpArgs(cred config.DatabaseCredential) []string {
	args := []string{
		cred.Name,
		fmt.Sprintf("--user=%s", cred.User),
		fmt.Sprintf("--password=%s", cred.Password),
	}
	if cred.Host != "" {
		args = append(args, fmt.Sprintf("--host=%s", cred.Host))
	}
	if cred.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", cred.Port))
	}
	return args
}

// stderrTail returns the last line of captured stderr for error messages
func stderrTail(buf *bytes.Buffer) string {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "no diagnostic output"
	}
	lines := strings.Split(out, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
