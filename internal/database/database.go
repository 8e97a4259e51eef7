package database

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/xelth-com/argoxlabels/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	embeddedDataPath = "./db_data"
	embeddedPort     = 5433
	embeddedPassword = "postgres"
)

// DB wraps the writer gorm.DB, the optional read-only pool, and the embedded
// process if one was started
type DB struct {
	*gorm.DB
	reader   *gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// postmasterPID reads the PID from the first line of a postmaster.pid file
func postmasterPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, fmt.Errorf("bad postmaster.pid %s: %w", path, err)
	}
	return pid, nil
}

// reclaimDataDir stops a postgres left running by a crashed label server and
// removes its pid file so the embedded instance can start on the same data.
func reclaimDataDir(dataPath string) {
	pidFile := filepath.Join(dataPath, "postmaster.pid")
	pid, err := postmasterPID(pidFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️  %v", err)
		}
		return
	}

	// FindProcess always succeeds on Unix; signal 0 probes liveness
	process, err := os.FindProcess(pid)
	if err != nil || process.Signal(syscall.Signal(0)) != nil {
		log.Printf("🧹 Removing stale postmaster.pid (PID %d not running)", pid)
		os.Remove(pidFile)
		return
	}

	log.Printf("⚠️  Found orphaned PostgreSQL process (PID %d), attempting to stop...", pid)
	if err := process.Signal(syscall.SIGTERM); err != nil {
		log.Printf("⚠️  Could not send SIGTERM to PID %d: %v", pid, err)
	}
	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		if process.Signal(syscall.Signal(0)) != nil {
			log.Printf("✅ Orphaned PostgreSQL process stopped")
			os.Remove(pidFile)
			return
		}
	}

	log.Printf("⚠️  Process did not stop gracefully, sending SIGKILL...")
	process.Kill()
	time.Sleep(500 * time.Millisecond)
	os.Remove(pidFile)
}

// waitForPort polls until nothing listens on port or the attempts run out
func waitForPort(port, attempts int, pause time.Duration) error {
	for i := 0; isPortInUse(port); i++ {
		if i == attempts {
			return fmt.Errorf("port %d is still in use by another process", port)
		}
		time.Sleep(pause)
	}
	return nil
}

// isPortInUse checks if a port is already in use
func isPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Connect establishes a connection to a PostgreSQL database (external or embedded).
// Writes use the elevated credentials; lookups use PG_READ_* when configured.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres

	if cfg.Embedded() {
		log.Println("📦 Mode: [Embedded PostgreSQL] - Initializing internal database...")

		reclaimDataDir(embeddedDataPath)
		if err := waitForPort(embeddedPort, 6, 500*time.Millisecond); err != nil {
			return nil, err
		}

		embeddedCfg := embeddedpostgres.DefaultConfig().
			DataPath(embeddedDataPath).
			Port(uint32(embeddedPort)).
			Database(cfg.Database).
			Username(cfg.Username).
			Password(embeddedPassword)

		embedded = embeddedpostgres.NewDatabase(embeddedCfg)
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded database: %w", err)
		}

		cfg.Port = strconv.Itoa(embeddedPort)
		cfg.Password = embeddedPassword
		log.Printf("✅ Embedded PostgreSQL process started on port %d", embeddedPort)
	} else if cfg.URL != "" {
		log.Println("🌐 Mode: [External PostgreSQL] - Connecting via DATABASE_URL")
	} else {
		log.Printf("🌐 Mode: [External PostgreSQL] - Connecting to %s:%s\n", cfg.Host, cfg.Port)
	}

	writer, err := openPool(writerDSN(cfg))
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	reader := writer
	if cfg.ReadUsername != "" && embedded == nil {
		reader, err = openPool(readerDSN(cfg))
		if err != nil {
			_ = closePool(writer)
			return nil, fmt.Errorf("failed to connect read-only role %s: %w", cfg.ReadUsername, err)
		}
		log.Printf("🔒 Lookups use read-only role %s", cfg.ReadUsername)
	}

	log.Println("✅ Database connection established")

	return &DB{
		DB:       writer,
		reader:   reader,
		embedded: embedded,
	}, nil
}

// openPool is replaced in tests
var openPool = open

func open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

func writerDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return keywordDSN(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

// readerDSN points the read-only role at the same server and database as the
// writer. With DATABASE_URL only the credentials are swapped.
func readerDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
			u.User = url.UserPassword(cfg.ReadUsername, cfg.ReadPassword)
			return u.String()
		}
		// keyword DSN: later keys override earlier ones
		return fmt.Sprintf("%s user=%s password=%s", cfg.URL, cfg.ReadUsername, cfg.ReadPassword)
	}
	return keywordDSN(cfg.Host, cfg.Port, cfg.ReadUsername, cfg.ReadPassword, cfg.Database)
}

func keywordDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)
}

// Reader returns the pool used for lookups
func (db *DB) Reader() *gorm.DB {
	if db.reader != nil {
		return db.reader
	}
	return db.DB
}

// Close ensures the database connections and embedded process are shut down
func (db *DB) Close() error {
	if db.reader != nil && db.reader != db.DB {
		_ = closePool(db.reader)
	}
	err := closePool(db.DB)

	if db.embedded != nil {
		log.Println("🛑 Stopping Embedded PostgreSQL process...")
		_ = db.embedded.Stop()
	}
	return err
}

func closePool(g *gorm.DB) error {
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
