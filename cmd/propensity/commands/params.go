package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/params"
	"github.com/wonny/leadscore/pkg/config"
)

// paramsCmd represents the params command
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "모델 파라미터 파일 검증",
	Long: `파라미터 파일을 로드/검증하고 run mode별 설정과 해시를 표시합니다.

이 명령어는:
- 알 수 없는 키 즉시 실패 (오타 방지)
- 필수 값/범위 검증
- general + run_mode 병합 결과 표시
- SHA256 해시 (모델 아티팩트에 기록되는 값)

Example:
  go run ./cmd/propensity params
  go run ./cmd/propensity params --params ./params.yaml`,
	RunE: runParams,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
}

func runParams(cmd *cobra.Command, args []string) error {
	path := paramsFile
	if path == "" {
		// 파라미터 검증에는 자격 증명이 필요 없음
		path = config.ParamsFile()
	}

	p, err := params.Load(path)
	if err != nil {
		PrintError(fmt.Sprintf("Invalid parameter file %s", path))
		return err
	}
	hash, err := params.Hash(p)
	if err != nil {
		return err
	}

	PrintHeader("Model parameters")
	PrintField("File", path)
	PrintField("Model", p.General.ModelID+"@"+p.General.Version)
	PrintField("Hash", hash)
	PrintField("Lookback", fmt.Sprintf("%d days", p.General.LookbackWindowDays))
	PrintField("Conversion", fmt.Sprintf("%d days", p.General.ConversionWindowDays))
	PrintField("Numerical", strings.Join(p.General.Features.Numerical, ", "))
	PrintField("Categorical", strings.Join(p.General.Features.Categorical, ", "))

	for _, mode := range []string{"train", "predict"} {
		s, err := p.Resolve(mode)
		if err != nil {
			return err
		}
		PrintSeparator()
		PrintField("Mode", mode)
		PrintField("Range", fmt.Sprintf("%d days", s.DatesProcessRangeDays))
		if mode == "train" {
			e := s.Estimator
			PrintField("Estimator", fmt.Sprintf("trees=%d depth=%d leaf=%d features=%s sampling=%s seed=%d",
				e.NEstimators, e.MaxDepth, e.MinSamplesLeaf, e.MaxFeatures, e.SamplingStrategy, e.RandomState))
			if s.Calibration.Enabled() {
				PrintField("Calibration", fmt.Sprintf("%s cv=%d", s.Calibration.Method, s.Calibration.CV))
			} else {
				PrintField("Calibration", "none")
			}
			PrintField("Quality", fmt.Sprintf("max_brier=%.3f min_samples=%d", s.Quality.MaxBrier, s.Quality.MinSamples))
		} else {
			PrintField("Correct", s.CorrectAvailable)
		}
	}
	PrintSeparator()
	PrintSuccess("Parameters valid")
	return nil
}
