package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/params"
	"github.com/wonny/leadscore/internal/pipeline"
	"github.com/wonny/leadscore/internal/queries"
	"github.com/wonny/leadscore/pkg/config"
	"github.com/wonny/leadscore/pkg/database"
	"github.com/wonny/leadscore/pkg/logger"
	"github.com/wonny/leadscore/pkg/objectstore"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "train 또는 predict 1회 실행",
	Long: `RUN_MODE에 따라 파이프라인을 한 번 실행합니다.

train:
- [EXEC_TIME - train.dates_process_range_days, EXEC_TIME) 리드 로드
- 전환 라벨 생성 (conversion_window_days)
- 분류기/가치 모델 학습, 품질 검사
- models/<model-id>_<version>_default.json 저장

predict:
- 저장된 모델 로드 (lookback_window_days 일치 검사)
- [EXEC_TIME - predict.dates_process_range_days, EXEC_TIME) 리드 점수화
- OUTPUT_TABLE에 한 트랜잭션으로 기록

Example:
  RUN_MODE=train EXEC_TIME=2022-06-30 go run ./cmd/propensity run
  go run ./cmd/propensity run --mode predict --exec-time 2022-06-30`,
	RunE: runPipeline,
}

var (
	// Run flags
	runMode     string
	runExecTime string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runMode, "mode", "", "train|predict (overrides RUN_MODE)")
	runCmd.Flags().StringVar(&runExecTime, "exec-time", "", "YYYY-MM-DD (overrides EXEC_TIME)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		PrintError("Failed to load config")
		return err
	}
	if runMode != "" {
		cfg.Run.Mode = runMode
	}
	if runExecTime != "" {
		cfg.Run.ExecTime = runExecTime
	}

	// 잘못된 RUN_MODE는 연결/모델 I/O 전에 실패
	mode, err := pipeline.ParseMode(cfg.Run.Mode)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	execTime, err := pipeline.ParseExecTime(cfg.Run.ExecTime, time.Now())
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	lg := logger.New(cfg)
	log.Logger = lg.Zerolog()

	p, err := params.Load(resolveParamsFile(cfg))
	if err != nil {
		lg.WithError(err).Error("Failed to load parameters")
		return err
	}
	qs, err := queries.Load(cfg.Warehouse.Driver, cfg.Run.QueriesDir)
	if err != nil {
		lg.WithError(err).Error("Failed to load query collection")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := execute(ctx, cfg, lg, p, qs, mode, execTime)
	if err != nil {
		lg.WithError(err).Error("Run failed")
		return err
	}

	PrintHeader(fmt.Sprintf("Lead propensity %s", res.Mode))
	PrintField("Run ID", res.RunID)
	PrintField("Period", res.Range)
	PrintField("Leads", res.Leads)
	if res.Mode == pipeline.ModeTrain {
		PrintField("Converted", res.Positives)
		PrintField("Brier", fmt.Sprintf("%.4f", res.Brier))
		PrintField("Artifact", res.ArtifactKey)
	} else {
		PrintField("Written", res.Written)
		PrintField("Table", cfg.Run.OutputTable)
	}
	PrintSeparator()
	PrintSuccess("Run completed")
	return nil
}

// execute holds the warehouse connection and the store for the duration of one run
func execute(ctx context.Context, cfg *config.Config, lg *logger.Logger, p *params.File, qs *queries.Collection, mode pipeline.Mode, execTime time.Time) (*pipeline.Result, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}
	defer db.Close()

	store, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}

	runner := pipeline.NewRunner(db, store, qs, p, cfg.Run.OutputTable, lg.Component("pipeline"))
	return runner.Run(ctx, mode, execTime)
}

// resolveParamsFile: --params > PARAMS_FILE > params.yaml
func resolveParamsFile(cfg *config.Config) string {
	if paramsFile != "" {
		return paramsFile
	}
	return cfg.Run.ParamsFile
}
