package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hansel67/stock-analyzer/internal/analysisconfig"
	"github.com/hansel67/stock-analyzer/pkg/config"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "분석 프로필 조회/검증",
	Long: `분석 프로필(YAML)을 확인합니다.

적용 순서: 내장 기본값 → --profile 또는 ANALYSIS_PROFILE 파일 → ANALYSIS_* 환경변수

Example:
  go run ./cmd/analyzer profile show
  go run ./cmd/analyzer profile validate config/analysis/default.yaml`,
}

var (
	profileShowCmd = &cobra.Command{
		Use:   "show",
		Short: "적용된 프로필과 해시 출력",
		RunE:  runProfileShow,
	}

	profileValidateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "프로필 파일 검증",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfileValidate,
	}
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileValidateCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	profile, err := loadProfile(cfg)
	if err != nil {
		return err
	}

	hash, err := analysisconfig.Hash(profile)
	if err != nil {
		return err
	}

	fmt.Printf("# config_hash: %s\n", hash)
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(profile)
}

func runProfileValidate(cmd *cobra.Command, args []string) error {
	profile, _, err := analysisconfig.Load(args[0])
	if err != nil {
		PrintError(err.Error())
		return err
	}

	hash, err := analysisconfig.Hash(profile)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%s is valid (config_hash %s)", args[0], shortHash(hash)))
	return nil
}
