package bfopt

import (
	"fmt"
	"log"
	"path/filepath"
	str "strings"

	sqlite "github.com/glebarez/sqlite"
	gorm "gorm.io/gorm"
)

// Optional sqlite-backed store for compiled programs and run accounting.
// The core never requires it; cmd tools opt in.

type PersistenceConfig struct {
	Name          string   `toml:"name"`
	Path          string   `toml:"path"`
	SQLitePragmas []string `toml:"sqlite_pragmas"`
	SQLiteOptions []string `toml:"sqlite_options"`
}

type Persistence struct {
	Config *PersistenceConfig
	DB     *gorm.DB
}

// CompiledProgram is one persisted optimizer output: the filtered source,
// the encoded opcode line, and the level that produced it.
type CompiledProgram struct {
	ID      uint
	Name    string `gorm:"index"`
	Source  string
	Level   string
	Opcodes string
}

// RunRecord is the accounting row written after a run.
type RunRecord struct {
	ID                uint
	CompiledProgramID uint
	TotalIterations   uint
	HaltReason        string
	Output            []byte `gorm:"type:blob"`
	TapeCells         uint
}

func NewPersistence(config *PersistenceConfig) (*Persistence, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if len(config.Path) == 0 {
		return nil, fmt.Errorf("Path to database must be defined")
	}

	if len(config.Name) == 0 {
		return nil, fmt.Errorf("Name of database must be defined")
	}

	var params []string
	for _, prag := range config.SQLitePragmas {
		params = append(params, fmt.Sprintf("_pragma=%s", prag))
	}
	params = append(params, config.SQLiteOptions...)

	var dsn str.Builder
	dsn.WriteString(filepath.Join(config.Path, config.Name))
	if len(params) > 0 {
		dsn.WriteRune('?')
		dsn.WriteString(str.Join(params, "&"))
	}

	db, err := gorm.Open(sqlite.Open(dsn.String()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db = db.Session(&gorm.Session{PrepareStmt: true})

	p := &Persistence{Config: config, DB: db}
	if err = p.initialize(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Persistence) initialize() error {
	return p.DB.AutoMigrate(
		&CompiledProgram{},
		&RunRecord{},
	)
}

func (p *Persistence) Shutdown() {
	if sqldb, err := p.DB.DB(); err != nil {
		log.Fatalf("Failed to retrieve raw DB: %v", err)
	} else {
		sqldb.Close()
	}
}

func (p *Persistence) SaveProgram(program *CompiledProgram) (uint, error) {
	if program == nil {
		return 0, fmt.Errorf("CompiledProgram cannot be nil")
	}

	if result := p.DB.Create(program); result.Error != nil {
		return 0, fmt.Errorf("Failed to call gorm.Create(): %w", result.Error)
	}

	return program.ID, nil
}

// LoadProgram fetches the newest compiled program saved under name and
// decodes its opcode line. A decode failure here means the stored row was
// corrupted after the fact; it is surfaced, never repaired.
func (p *Persistence) LoadProgram(name string) (*CompiledProgram, OpcodeStream, error) {
	program := &CompiledProgram{}
	if result := p.DB.Where("name = ?", name).Last(program); result.Error != nil {
		return nil, nil, fmt.Errorf("Failed to load program [%s]: %w", name, result.Error)
	}

	stream, err := Decode(program.Opcodes)
	if err != nil {
		return nil, nil, fmt.Errorf("Stored opcodes for program [%s] failed to decode: %w", name, err)
	}

	return program, stream, nil
}

func (p *Persistence) RecordRun(programID uint, result *RunResult, output []byte) (uint, error) {
	if result == nil {
		return 0, fmt.Errorf("RunResult cannot be nil")
	}

	record := &RunRecord{
		CompiledProgramID: programID,
		TotalIterations:   result.TotalIterations,
		HaltReason:        result.HaltReason.String(),
		Output:            output,
		TapeCells:         uint(len(result.Tape.Cells)),
	}

	if create := p.DB.Create(record); create.Error != nil {
		return 0, fmt.Errorf("Failed to call gorm.Create(): %w", create.Error)
	}

	return record.ID, nil
}

// RunStats aggregates the accounting rows for one compiled program.
type RunStats struct {
	RunCount      uint
	AvgIterations float64
	MaxIterations uint
}

// QueryRunStats goes through the raw sql.DB for the aggregate; one row,
// no model churn.
func (p *Persistence) QueryRunStats(programID uint) (*RunStats, error) {
	sqldb, err := p.DB.DB()
	if err != nil {
		return nil, err
	}

	row := sqldb.QueryRow(`SELECT COUNT(*), COALESCE(AVG(total_iterations), 0),
		COALESCE(MAX(total_iterations), 0)
		FROM run_records WHERE compiled_program_id = ?`, programID)

	stats := &RunStats{}
	var count int64
	var max int64
	if err := row.Scan(&count, &stats.AvgIterations, &max); err != nil {
		return nil, err
	}
	stats.RunCount = uint(count)
	stats.MaxIterations = uint(max)
	return stats, nil
}
