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

	"github.com/windnow/dlanalyzer/internal/common"
	"github.com/windnow/dlanalyzer/internal/config"
	"github.com/windnow/dlanalyzer/internal/deadlock"
	"github.com/windnow/dlanalyzer/internal/flag"
	"github.com/windnow/dlanalyzer/internal/report"
)

var (
	configPath      string
	source          string
	pattern         string
	connString      string
	startTime       string
	endTime         string
	format          string
	tz              string
	logLevel        string
	firstVictimOnly bool
)

func init() {
	flag.StringVar(&configPath, "config", common.DefaultConfigPath("dlanalyzer.toml"), "Путь к файлу конфигурации")
	flag.StringVar(&source, "source", config.SourceXML, "Источник событий (xml - выгруженные XML файлы, mssql - .xel файлы через SQL Server)")
	flag.StringVar(&pattern, "pattern", "", "Шаблон файлов трассировки (для mssql по умолчанию system_health*.xel из каталога журналов сервера)")
	flag.StringVar(&connString, "conn", "", "Строка подключения к SQL Server")
	flag.StringVar(&startTime, "start", "", "Начало периода (включительно)")
	flag.StringVar(&endTime, "end", "", "Конец периода (включительно)")
	flag.StringVar(&format, "format", report.FormatTable, "Формат вывода (table, json, yaml)")
	flag.StringVar(&tz, "tz", "UTC", "Часовой пояс")
	flag.StringVar(&logLevel, "log-level", "info", "Уровень журналирования")
	flag.BoolVar(&firstVictimOnly, "first-victim-only", false, "Считать жертвой только первый процесс из victim-list")
	flag.Parse()
}

func main() {

	conf, loadErr := config.Load(configPath)

	var overrideErr error
	flag.Visit(func(name, value string) {
		if name == "config" || overrideErr != nil {
			return
		}
		overrideErr = conf.Set(name, value)
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
	window, _ := conf.Window()
	loc, _ := conf.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go breakListener(cancel)

	src, closeSource, err := conf.OpenSource(ctx)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeSource()

	result, err := deadlock.NewAnalyzer(src, conf.Options(), logger).Analyze(ctx, window)
	if err != nil {
		logger.Errorf("Анализ прерван: %s", err.Error())
		closeSource()
		os.Exit(1)
	}

	if err := report.Write(os.Stdout, result, conf.Output.Format, loc); err != nil {
		logger.Errorf("Ошибка вывода отчета: %s", err.Error())
		closeSource()
		os.Exit(1)
	}
}

func breakListener(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	fmt.Fprintln(os.Stderr, "Получен сигнал:", sig)
	cancel()
}
