package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	paramsFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "propensity",
	Short: "Lead propensity scoring - 리드 전환 확률/예약 가치 배치",
	Long: `Lead propensity scoring CLI

리드 생성 이벤트를 웨어하우스에서 읽어
train: 전환 확률 분류기 + 예약 가치 회귀 모델 학습 후 오브젝트 스토어에 저장
predict: 저장된 모델로 리드를 점수화하여 웨어하우스에 기록

Usage:
  go run ./cmd/propensity [command]

Examples:
  RUN_MODE=train EXEC_TIME=2022-06-30 go run ./cmd/propensity run
  go run ./cmd/propensity run --mode predict
  go run ./cmd/propensity params
  go run ./cmd/propensity queries
  go run ./cmd/propensity test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&paramsFile, "params", "", "model parameter file (default is PARAMS_FILE or params.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
