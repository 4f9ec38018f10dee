package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/queries"
	"github.com/wonny/leadscore/pkg/config"
)

// queriesCmd represents the queries command
var queriesCmd = &cobra.Command{
	Use:   "queries [name]",
	Short: "쿼리 컬렉션 조회",
	Long: `내장 쿼리 컬렉션(QUERIES_DIR로 덮어쓰기 가능)을 표시합니다.
WAREHOUSE_DRIVER=snowflake 이면 Snowflake 방언 쿼리를 표시합니다.

인자 없이 실행하면 이름/파라미터/설명 목록,
이름을 주면 해당 쿼리 본문을 출력합니다.

Example:
  go run ./cmd/propensity queries
  go run ./cmd/propensity queries leads_median_value
  QUERIES_DIR=./collection go run ./cmd/propensity queries
  WAREHOUSE_DRIVER=snowflake go run ./cmd/propensity queries leads_conversions`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQueries,
}

func init() {
	rootCmd.AddCommand(queriesCmd)
}

func runQueries(cmd *cobra.Command, args []string) error {
	qs, err := queries.Load(config.WarehouseDriver(), config.QueriesDir())
	if err != nil {
		PrintError("Failed to load query collection")
		return err
	}

	if len(args) == 1 {
		t, err := qs.Get(args[0])
		if err != nil {
			return err
		}
		PrintHeader(t.Name)
		fmt.Println(strings.TrimSpace(t.Desc))
		PrintSeparator()
		fmt.Println(t.Query)
		return nil
	}

	PrintHeader("Query collection")
	for _, name := range qs.Names() {
		t, err := qs.Get(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", name)
		fmt.Printf("      params: %s\n", strings.Join(t.Params, ", "))
		if len(t.Identifiers) > 0 {
			fmt.Printf("      identifiers: %s\n", strings.Join(t.Identifiers, ", "))
		}
		fmt.Printf("      %s\n", strings.TrimSpace(t.Desc))
	}
	PrintSeparator()
	PrintInfo(fmt.Sprintf("%d queries", len(qs.Names())))
	return nil
}
