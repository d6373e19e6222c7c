// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger

func init() {
	var err error
	logger, err = zap.NewDevelopment(zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	if err != nil {
		panic(err)
	}
}

// Logger get current logger
func Logger() *zap.Logger {
	return logger
}

// RunLogger returns a logger tagged with an evaluation run and its sample.
func RunLogger(run int, userId, itemId string) *zap.Logger {
	return logger.With(zap.Int("run", run), zap.String("user_id", userId), zap.String("item_id", itemId))
}

// CloseLogger flushes buffered entries and silences everything below fatal.
func CloseLogger() {
	_ = logger.Sync()
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.FatalLevel)
	var err error
	logger, err = cfg.Build()
	if err != nil {
		panic(err)
	}
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
	flagSet.Bool("log-compress", false, "compress rotated log files")
	flagSet.Bool("log-quiet", false, "write logs to the log file only")
}

// SetLogger replaces the default logger. Console output goes to stderr since
// reports are printed on stdout. With --log-path set, entries are also written
// to a rotated file.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	var (
		encoder zapcore.Encoder
		level   zapcore.LevelEnabler
	)
	timeEncoder := zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
	if debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = timeEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
		level = zap.DebugLevel
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = timeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
		level = zap.InfoLevel
	}
	var writers []zapcore.WriteSyncer
	if quiet, _ := flagSet.GetBool("log-quiet"); !quiet || !flagSet.Changed("log-path") {
		writers = append(writers, zapcore.Lock(os.Stderr))
	}
	if flagSet.Changed("log-path") {
		path, _ := flagSet.GetString("log-path")
		maxSize, _ := flagSet.GetInt("log-max-size")
		maxAge, _ := flagSet.GetInt("log-max-age")
		maxBackups, _ := flagSet.GetInt("log-max-backups")
		compress, _ := flagSet.GetBool("log-compress")
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   compress,
		}))
	}
	core := zapcore.NewCore(encoder, zap.CombineWriteSyncers(writers...), level)
	logger = zap.New(core)
}

const mysqlPrefix = "mysql://"

// RedactDBURL masks credentials in a data source before it is logged. File
// paths and URLs without credentials are returned as is.
func RedactDBURL(source string) string {
	switch {
	case strings.HasPrefix(source, mysqlPrefix):
		parsed, err := mysql.ParseDSN(strings.TrimPrefix(source, mysqlPrefix))
		if err != nil {
			return source
		}
		parsed.User = mask(parsed.User)
		parsed.Passwd = mask(parsed.Passwd)
		return mysqlPrefix + parsed.FormatDSN()
	case strings.Contains(source, "://"):
		parsed, err := url.Parse(source)
		if err != nil || parsed.User == nil {
			return source
		}
		password, _ := parsed.User.Password()
		parsed.User = url.UserPassword(mask(parsed.User.Username()), mask(password))
		return parsed.String()
	default:
		return source
	}
}

func mask(s string) string {
	return strings.Repeat("x", len(s))
}
