package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
	"github.com/windnow/dlanalyzer/internal/common"
	"github.com/windnow/dlanalyzer/internal/config"
	"github.com/windnow/dlanalyzer/internal/deadlock"
	"github.com/windnow/dlanalyzer/internal/flag"
	"github.com/windnow/dlanalyzer/internal/program"
	"github.com/windnow/dlanalyzer/internal/reportserver"
)

var (
	configPath string
	mode       string
	operation  string
	bindAddr   string
	source     string
	pattern    string
	connString string
	tz         string
	logLevel   string
)

func init() {
	flag.StringVar(&configPath, "config", common.DefaultConfigPath("dlanalyzer.toml"), "Путь к файлу конфигурации")
	flag.StringVar(&mode, "mode", "default", "Режим запуска (service-cлужба, default-консоль)")
	flag.StringVar(&operation, "operation", "", "install - установить службу, uninstall - удалить службу")
	flag.StringVar(&bindAddr, "bind", ":8080", "Адрес HTTP сервера")
	flag.StringVar(&source, "source", config.SourceXML, "Источник событий (xml, mssql)")
	flag.StringVar(&pattern, "pattern", "", "Шаблон файлов трассировки")
	flag.StringVar(&connString, "conn", "", "Строка подключения к SQL Server")
	flag.StringVar(&tz, "tz", "UTC", "Часовой пояс")
	flag.StringVar(&logLevel, "log-level", "info", "Уровень журналирования")
	flag.Parse()
}

// sourceAnalyzer opens a fresh source for every request.
type sourceAnalyzer struct {
	conf *config.Config
	log  *logrus.Logger
}

func (a *sourceAnalyzer) Analyze(ctx context.Context, w deadlock.Window) (*deadlock.Report, error) {
	src, closeSource, err := a.conf.OpenSource(ctx)
	defer closeSource()
	if err != nil {
		return nil, err
	}
	return deadlock.NewAnalyzer(src, a.conf.Options(), a.log).Analyze(ctx, w)
}

func main() {

	conf, loadErr := config.Load(configPath)

	var overrideErr error
	flag.Visit(func(name, value string) {
		switch name {
		case "config", "mode", "operation":
			return
		}
		if overrideErr == nil {
			overrideErr = conf.Set(name, value)
		}
	})
	if overrideErr != nil {
		log.Fatal(overrideErr)
	}

	logger := common.NewLogger(conf.LogLevel)
	if loadErr != nil {
		if !errors.Is(loadErr, fs.ErrNotExist) {
			logger.Fatal(loadErr)
		}
		logger.Warnf("Файл конфигурации %s не найден. Используются параметры командной строки", configPath)
	}
	if err := conf.Validate(); err != nil {
		logger.Fatal(err)
	}

	server, err := reportserver.New(conf, &sourceAnalyzer{conf: conf, log: logger}, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if mode == "service" {
		runService(server, logger)
		return
	}

	go breakListener(server)
	if err := server.Start(nil); err != nil {
		logger.Fatal(err)
	}
}

func runService(server *reportserver.Server, logger *logrus.Logger) {
	var workDir string
	if err := common.WorkingDir(&workDir); err != nil {
		logger.Fatal(err)
	}

	svcConfig := program.Config(
		"dlanalyzer",
		"SQL Server deadlock analyzer",
		"HTTP отчеты о взаимоблокировках SQL Server по событиям xml_deadlock_report",
		workDir,
		[]string{"-mode=service", fmt.Sprintf("-config=%s", configPath)},
	)
	s, err := service.New(program.New(server, logger), svcConfig)
	if err != nil {
		logger.Fatal(err)
	}

	switch operation {
	case "install":
		if err := s.Install(); err != nil {
			logger.Fatal("ERROR ON INSTALL ", err.Error())
		}
		logger.Info("<-Service installed")
	case "uninstall":
		if err := s.Uninstall(); err != nil {
			logger.Fatal("ERROR ON UNINSTALL ", err.Error())
		}
		logger.Info("->Service removed")
	default:
		if err := s.Run(); err != nil {
			logger.Fatal(err)
		}
	}
}

func breakListener(server *reportserver.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	fmt.Println("Получен сигнал:", sig)
	if err := server.Stop(); err != nil {
		log.Println("==>", err)
	}
}
