package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed knowledge.sql
var knowledgeSQL string

// Function lists for verification
var KnowledgeFunctions = []string{
	"init_knowledge",
	"knowledge_dimension",
	"upsert_knowledge_record",
	"select_knowledge_record",
	"delete_knowledge_record",
	"match_knowledge",
	"knowledge_stats",
	"count_knowledge_by_season",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadKnowledgeSql loads the knowledge base SQL functions
func LoadKnowledgeSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, KnowledgeFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing knowledge functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(knowledgeSQL)
	if err != nil {
		return fmt.Errorf("error executing knowledge SQL: %w", err)
	}

	return VerifyKnowledgeSql(db)
}

// VerifyKnowledgeSql fails if any knowledge base function is missing.
func VerifyKnowledgeSql(db *sql.DB) error {
	exist, err := checkFunctions(db, KnowledgeFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL knowledge functions loaded successfully")
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
