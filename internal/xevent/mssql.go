package xevent

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/pkg/errors"
)

const readTraceQuery = `SELECT
		object_name,
		timestamp_utc,
		CAST(event_data AS nvarchar(max))
	FROM
		sys.fn_xe_file_target_read_file(@pattern, null, null, null)
	WHERE
		object_name = @name
	`

const errorLogQuery = `SELECT CAST(SERVERPROPERTY('ErrorLogFileName') AS nvarchar(4000))`

const systemHealthMask = "system_health*.xel"

func Open(ctx context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, errors.Wrap(err, "подключение к SQL Server")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "проверка связи с SQL Server")
	}
	return db, nil
}

// SQLSource reads .xel files through sys.fn_xe_file_target_read_file.
type SQLSource struct {
	DB      *sql.DB
	Pattern PatternProvider
}

func NewSQLSource(db *sql.DB, pattern PatternProvider) *SQLSource {
	return &SQLSource{DB: db, Pattern: pattern}
}

func (s *SQLSource) Read(ctx context.Context, fn func(Event) error) error {
	pattern, err := s.Pattern.TracePattern(ctx)
	if err != nil {
		return err
	}

	rows, err := s.DB.QueryContext(ctx, readTraceQuery,
		sql.Named("pattern", pattern),
		sql.Named("name", DeadlockReport),
	)
	if err != nil {
		return &SourceReadError{Pattern: pattern, Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		event, err := parseRow(rows)
		if err != nil {
			return &SourceReadError{Pattern: pattern, Err: err}
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &SourceReadError{Pattern: pattern, Err: err}
	}

	return nil
}

func parseRow(rows *sql.Rows) (Event, error) {

	var name string
	var timestamp time.Time
	var eventData sql.NullString

	if err := rows.Scan(&name, &timestamp, &eventData); err != nil {
		return Event{}, err
	}

	return Event{
		Name:      name,
		Timestamp: timestamp.UTC(),
		Payload:   []byte(eventData.String),
	}, nil
}

// EngineLogPattern derives the system_health trace pattern from the
// instance error log location.
type EngineLogPattern struct {
	DB *sql.DB
}

func (p *EngineLogPattern) TracePattern(ctx context.Context) (string, error) {
	var errorLog sql.NullString
	err := p.DB.QueryRowContext(ctx, errorLogQuery).Scan(&errorLog)
	if err != nil {
		return "", &SourceReadError{Err: errors.Wrap(err, "чтение каталога журналов SQL Server")}
	}
	if !errorLog.Valid || errorLog.String == "" {
		return "", &SourceReadError{Err: errors.New("SQL Server не сообщил расположение журнала ошибок")}
	}
	return PatternFromErrorLog(errorLog.String), nil
}

// PatternFromErrorLog keeps the separator style of the engine host.
func PatternFromErrorLog(errorLog string) string {
	idx := strings.LastIndexAny(errorLog, `\/`)
	if idx < 0 {
		return systemHealthMask
	}
	return errorLog[:idx+1] + systemHealthMask
}
