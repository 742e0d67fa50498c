package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

var mysqlTracer = otel.Tracer("ai-agent-go/store/keyword")

// GormTracingPlugin attaches an OpenTelemetry span to every GORM
// create/query/update/delete/row/raw callback, mirroring the teacher's
// manual instrumentation since GORM ships no first-party otel plugin.
type GormTracingPlugin struct {
	tracer   trace.Tracer
	dbName   string
	dbSystem string
}

// Name satisfies gorm.Plugin.
func (p *GormTracingPlugin) Name() string { return "otelTracingPlugin" }

// Initialize registers before/after callbacks for every CRUD operation
// GORM exposes.
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	ops := []struct {
		reg  func(string, func(*gorm.DB)) error
		name string
		verb string
	}{
		{cb.Create().Before("gorm:create").Register, "otel:before_create", "CREATE"},
		{cb.Query().Before("gorm:query").Register, "otel:before_query", "SELECT"},
		{cb.Update().Before("gorm:update").Register, "otel:before_update", "UPDATE"},
		{cb.Delete().Before("gorm:delete").Register, "otel:before_delete", "DELETE"},
		{cb.Row().Before("gorm:row").Register, "otel:before_row", "ROW"},
		{cb.Raw().Before("gorm:raw").Register, "otel:before_raw", "RAW"},
	}
	for _, op := range ops {
		if err := op.reg(op.name, p.before(op.verb)); err != nil {
			return err
		}
	}

	afters := []struct {
		reg  func(string, func(*gorm.DB)) error
		name string
	}{
		{cb.Create().After("gorm:create").Register, "otel:after_create"},
		{cb.Query().After("gorm:query").Register, "otel:after_query"},
		{cb.Update().After("gorm:update").Register, "otel:after_update"},
		{cb.Delete().After("gorm:delete").Register, "otel:after_delete"},
		{cb.Row().After("gorm:row").Register, "otel:after_row"},
		{cb.Raw().After("gorm:raw").Register, "otel:after_raw"},
	}
	for _, a := range afters {
		if err := a.reg(a.name, p.after()); err != nil {
			return err
		}
	}
	return nil
}

type otelSpanKey struct{}

func (p *GormTracingPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", table),
			),
		}
		if sql := db.Statement.SQL.String(); sql != "" {
			opts = append(opts, trace.WithAttributes(attribute.String("db.statement", tracing.SafeSQL(sql))))
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, table), opts...)
		db.Statement.Context = context.WithValue(newCtx, otelSpanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(*gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(otelSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// KeywordStore is the keyword half of the Document Store Adapter
// (spec §4.A): a single `WHERE ... REGEXP ... OR ...` query across the
// fixed field set, case-folded via LOWER().
type KeywordStore struct {
	db *gorm.DB
}

// NewKeywordStore opens a MySQL connection and auto-migrates the resume
// documents table.
func NewKeywordStore(cfg *config.MySQLConfig) (*KeywordStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	default:
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormlogger.Default.LogMode(logLevel),
		PrepareStmt: true,
		NowFunc: func() time.Time { return time.Now().Local() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(&GormTracingPlugin{tracer: mysqlTracer, dbName: cfg.Database}); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	if err := db.AutoMigrate(&resumeDocumentRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}

	return &KeywordStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (k *KeywordStore) Close() error {
	sqlDB, err := k.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// KeywordQuery issues one query that ORs a REGEXP per field of spec.md's
// fixed field set, each matching the alternation of all tokens
// case-insensitively, and returns up to limit matching
// documents with no score attached — the caller (the Keyword Engine) scores
// them. Ordering is the store's natural row order, which is deterministic
// for a fixed snapshot.
func (k *KeywordStore) KeywordQuery(ctx context.Context, tokens []string, limit int) ([]types.ResumeDocument, error) {
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	pattern := strings.Join(escapeTokens(tokens), "|")

	clauses := make([]string, 0, len(types.SearchFields))
	args := make([]interface{}, 0, len(types.SearchFields))
	for _, field := range types.SearchFields {
		clauses = append(clauses, fmt.Sprintf("LOWER(%s) REGEXP ?", field))
		args = append(args, strings.ToLower(pattern))
	}
	whereClause := strings.Join(clauses, " OR ")

	var rows []resumeDocumentRow
	tx := k.db.WithContext(ctx).
		Where(whereClause, args...).
		Limit(limit).
		Find(&rows)
	if tx.Error != nil {
		return nil, fmt.Errorf("keyword query: %w", tx.Error)
	}

	docs := make([]types.ResumeDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, rowToDocument(row))
	}
	return docs, nil
}

// GetByID fetches a single document by its stable identifier, used by the
// Vector Engine to hydrate display fields for a vector-store hit whose
// payload lacks them.
func (k *KeywordStore) GetByID(ctx context.Context, id string) (*types.ResumeDocument, error) {
	var row resumeDocumentRow
	tx := k.db.WithContext(ctx).First(&row, "id = ?", id)
	if tx.Error != nil {
		return nil, tx.Error
	}
	doc := rowToDocument(row)
	return &doc, nil
}

func rowToDocument(row resumeDocumentRow) types.ResumeDocument {
	var skills []string
	if len(row.Skills) > 0 {
		_ = json.Unmarshal(row.Skills, &skills)
	}
	return types.ResumeDocument{
		ID:      row.ID,
		Name:    row.Name,
		Email:   row.Email,
		Phone:   row.Phone,
		Role:    row.Role,
		Company: row.Company,
		Text:    row.Text,
		Skills:  skills,
	}
}

// escapeTokens backslash-escapes regex metacharacters MySQL's REGEXP would
// otherwise interpret, so a query token like "C++" matches literally.
func escapeTokens(tokens []string) []string {
	escaped := make([]string, len(tokens))
	replacer := strings.NewReplacer(
		`\`, `\\`, `.`, `\.`, `*`, `\*`, `+`, `\+`, `?`, `\?`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
		`^`, `\^`, `$`, `\$`, `|`, `\|`,
	)
	for i, t := range tokens {
		escaped[i] = replacer.Replace(t)
	}
	return escaped
}
