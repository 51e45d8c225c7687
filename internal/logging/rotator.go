package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	filePrefix = "beacon_"
	fileExt    = ".jsonl"
	dateLayout = "2006-01-02"
)

// Rotator writes decoded beacons to one file per day and gzips the previous
// day's file after rotation
type Rotator struct {
	logDir      string
	useUTC      bool
	logger      *logrus.Logger
	now         func() time.Time
	currentFile *os.File
	currentDate string
	mutex       sync.RWMutex
	compressing sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewRotator creates a new rotator writing into logDir
func NewRotator(logDir string, useUTC bool, logger *logrus.Logger) (*Rotator, error) {
	return newRotator(logDir, useUTC, logger, time.Now)
}

func newRotator(logDir string, useUTC bool, logger *logrus.Logger, now func() time.Time) (*Rotator, error) {
	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	rotator := &Rotator{
		logDir: logDir,
		useUTC: useUTC,
		logger: logger,
		now:    now,
		ctx:    ctx,
		cancel: cancel,
	}

	rotator.mutex.Lock()
	err := rotator.rotateLogFile()
	rotator.mutex.Unlock()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	return rotator, nil
}

// Start checks for a date change once a minute until ctx is cancelled or
// the rotator is closed
func (r *Rotator) Start(ctx context.Context) {
	r.logger.Info("Starting beacon log rotator")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Beacon log rotator stopping")
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.checkRotation()
		}
	}
}

func (r *Rotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *Rotator) fileName(date string) string {
	return filepath.Join(r.logDir, filePrefix+date+fileExt)
}

// checkRotation rotates the file if the date has changed
func (r *Rotator) checkRotation() {
	currentDate := r.today()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile != nil && r.currentDate != currentDate {
		r.logger.WithFields(logrus.Fields{
			"old_date": r.currentDate,
			"new_date": currentDate,
		}).Info("Rotating beacon log file")

		if err := r.rotateLogFile(); err != nil {
			r.logger.WithError(err).Error("Failed to rotate beacon log file")
		}
	}
}

// rotateLogFile opens today's file. The caller holds the write lock.
func (r *Rotator) rotateLogFile() error {
	newDate := r.today()

	if r.currentFile != nil {
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old beacon log file")
		}
		r.currentFile = nil

		if r.currentDate != newDate {
			oldDate := r.currentDate
			r.compressing.Add(1)
			go func() {
				defer r.compressing.Done()
				r.compressLogFile(oldDate)
			}()
		}
	}

	path := r.fileName(newDate)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = newDate

	r.logger.WithField("file", path).Info("Opened beacon log file")

	return nil
}

// compressLogFile gzips the file for date and removes the original
func (r *Rotator) compressLogFile(date string) {
	logFile := r.fileName(date)
	gzipFile := logFile + ".gz"

	r.logger.WithFields(logrus.Fields{
		"source": logFile,
		"target": gzipFile,
	}).Info("Compressing beacon log file")

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		r.logger.WithField("file", logFile).Debug("Beacon log file doesn't exist, skipping compression")
		return
	}

	if err := compressFile(logFile, gzipFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to compress beacon log file")
		return
	}

	if err := os.Remove(logFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to remove original beacon log file")
		return
	}

	r.logger.WithField("file", gzipFile).Info("Beacon log file compressed")
}

func compressFile(source, target string) error {
	src, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create compressed file: %w", err)
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	gzWriter.Name = filepath.Base(source)
	gzWriter.ModTime = time.Now()

	if _, err := io.Copy(gzWriter, src); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return dst.Close()
}

// Write appends p to the current file, rotating first if the date changed
func (r *Rotator) Write(p []byte) (int, error) {
	if r.currentDateStale() {
		r.checkRotation()
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentFile == nil {
		return 0, fmt.Errorf("no current log file")
	}

	return r.currentFile.Write(p)
}

func (r *Rotator) currentDateStale() bool {
	today := r.today()

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.currentFile != nil && r.currentDate != today
}

// GetWriter returns the current log writer
func (r *Rotator) GetWriter() (io.Writer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentFile == nil {
		return nil, fmt.Errorf("no current log file")
	}

	return r.currentFile, nil
}

// Close closes the current file and waits for pending compression
func (r *Rotator) Close() error {
	r.logger.Info("Closing beacon log rotator")

	r.cancel()

	r.mutex.Lock()
	var err error
	if r.currentFile != nil {
		if err = r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close current beacon log file")
		}
		r.currentFile = nil
	}
	r.mutex.Unlock()

	r.compressing.Wait()

	return err
}

// GetCurrentLogFile returns the current log file path
func (r *Rotator) GetCurrentLogFile() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentDate == "" {
		return ""
	}

	return r.fileName(r.currentDate)
}

// GetLogFiles returns all beacon log files, including compressed ones
func (r *Rotator) GetLogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.logDir, filePrefix+"*"+fileExt+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}

	return files, nil
}

// CleanupOldLogs removes log files older than maxDays
func (r *Rotator) CleanupOldLogs(maxDays int) error {
	if maxDays <= 0 {
		return fmt.Errorf("maxDays must be positive")
	}

	files, err := r.GetLogFiles()
	if err != nil {
		return fmt.Errorf("failed to get log files: %w", err)
	}

	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	cutoff := now.AddDate(0, 0, -maxDays)
	current := r.GetCurrentLogFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat beacon log file")
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				r.logger.WithError(err).WithField("file", file).Error("Failed to remove old beacon log file")
			} else {
				r.logger.WithField("file", file).Info("Removed old beacon log file")
				removed++
			}
		}
	}

	r.logger.WithField("count", removed).Info("Cleaned up old beacon log files")
	return nil
}
