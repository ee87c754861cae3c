package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/carebridge/securitycore/internal/database"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/repositories"
	pkgauth "github.com/carebridge/securitycore/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("securitycore"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, connStr); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, connStr string) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a database/sql connection
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"audit_logs",
		"security_events",
		"login_attempts",
		"sessions",
		"accounts",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.AccountRepository,
	*repositories.SessionRepository,
	*repositories.LoginAttemptRepository,
	*repositories.SecurityEventRepository,
	*repositories.AuditLogRepository,
) {
	return repositories.NewAccountRepository(db),
		repositories.NewSessionRepository(db),
		repositories.NewLoginAttemptRepository(db),
		repositories.NewSecurityEventRepository(db),
		repositories.NewAuditLogRepository(db)
}

// SeedAccount inserts a test account with a hashed password
func SeedAccount(ctx context.Context, pool *pgxpool.Pool, email, password, role string) (*models.Account, error) {
	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO accounts (email, name, password_hash, role, password_changed_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, email, name, password_hash, role, status, mfa_enabled, failed_login_attempts, created_at, updated_at
	`

	var account models.Account
	err = pool.QueryRow(ctx, query, email, "Test Account", hashedPassword, role).Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.PasswordHash,
		&account.Role,
		&account.Status,
		&account.MFAEnabled,
		&account.FailedLoginAttempts,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return &account, nil
}

// SeedFailedLoginAttempts inserts failed attempts for an email from one IP
func SeedFailedLoginAttempts(ctx context.Context, pool *pgxpool.Pool, email, ip string, count int) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, success, failure_reason, expires_at)
		VALUES ($1, $2, FALSE, 'invalid_password', NOW() + INTERVAL '30 days')
	`

	for i := 0; i < count; i++ {
		if _, err := pool.Exec(ctx, query, email, ip); err != nil {
			return fmt.Errorf("failed to insert login attempt: %w", err)
		}
	}

	return nil
}

// SeedLockedAccount inserts an account that is currently locked out
func SeedLockedAccount(ctx context.Context, pool *pgxpool.Pool, email, password string) (*models.Account, error) {
	account, err := SeedAccount(ctx, pool, email, password, "staff")
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE accounts
		SET failed_login_attempts = 5, locked_until = NOW() + INTERVAL '15 minutes'
		WHERE id = $1
	`
	if _, err := pool.Exec(ctx, query, account.ID); err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	return account, nil
}
