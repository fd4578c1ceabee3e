package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ZhaoYaoJing/internal/compare"
	"ZhaoYaoJing/internal/config"
	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/scanner"
	"ZhaoYaoJing/internal/server"
	"ZhaoYaoJing/internal/store"
	"ZhaoYaoJing/internal/utils"
)

const version = "1.0.0"

var logger = utils.NewLogger("cli")

// Execute 命令行入口
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zhaoyaojing",
		Short: "照妖镜 - 漏洞监控扫描引擎",
		Long: `照妖镜是一个面向域名的漏洞监控扫描引擎。
对目标执行端口探测、TLS证书检查、子域名枚举与漏洞分析，
并支持对历史扫描做差分比对，跟踪安全态势变化。`,
		SilenceUsage: true,
	}

	root.AddCommand(newScanCmd())
	root.AddCommand(newCompareCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newScanCmd() *cobra.Command {
	var (
		profile    string
		format     string
		outputFile string
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "scan <目标域名>",
		Short: "对目标执行一次扫描",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			orchestrator, err := scanner.NewOrchestrator(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := orchestrator.RunScan(ctx, args[0], model.ScanProfile(profile))
			if err != nil {
				return err
			}

			if save {
				scanStore, err := store.NewSQLiteStore(cfg.DatabasePath)
				if err != nil {
					return err
				}
				defer scanStore.Close()

				record := &store.ScanRecord{
					ID:        uuid.NewString(),
					Domain:    args[0],
					Profile:   model.ScanProfile(profile),
					CreatedAt: time.Now(),
					Result:    result,
				}
				if err := scanStore.Save(ctx, record); err != nil {
					return err
				}
				logger.Info("扫描结果已保存: %s", record.ID)
			}

			return NewOutputFormatter(format).PrintResult(result, outputFile)
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "quick", "扫描模式 (quick, deep)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "输出格式 (text, json, csv)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "输出到文件")
	cmd.Flags().BoolVar(&save, "save", false, "保存结果到扫描历史")
	return cmd
}

func newCompareCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "compare <目标域名>",
		Short: "对比目标最近两次扫描",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			scanStore, err := store.NewSQLiteStore(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer scanStore.Close()

			history, err := scanStore.History(cmd.Context(), args[0], 2)
			if err != nil {
				return err
			}
			if len(history) < 2 {
				return fmt.Errorf("域名 %s 的扫描历史不足两次, 无法对比", args[0])
			}

			// History按时间倒序, [0]是最新一次
			comparison := compare.CompareScans(history[1].Result, history[0].Result)
			summaryText := compare.GenerateComparisonSummary(comparison)

			if format == "json" {
				output, err := json.MarshalIndent(comparison, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(output))
				return nil
			}
			fmt.Print(FormatComparison(comparison, summaryText))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "输出格式 (text, json)")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "以HTTP服务方式运行扫描引擎",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			orchestrator, err := scanner.NewOrchestrator(cfg)
			if err != nil {
				return err
			}

			scanStore, err := store.NewSQLiteStore(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer scanStore.Close()

			srv := server.New(cfg, orchestrator, scanStore)
			defer srv.Close()
			return srv.Run()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("照妖镜 v%s\n", version)
		},
	}
}
