package execshell

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	transcriptDirectoryPermissionsConstant = 0o755
	transcriptFilePermissionsConstant      = 0o644
	transcriptFileExtensionConstant        = ".log"
	transcriptNameSeparatorConstant        = "_"
	transcriptCommandOperationConstant     = "CMD"
	transcriptProcessOperationConstant     = "PID"
	transcriptOutputOperationConstant      = "OUT"
	transcriptErrorOperationConstant       = "ERR"
	transcriptExitOperationConstant        = "END"
)

// TranscriptWriter creates one transcript file per script run inside a directory.
type TranscriptWriter struct {
	directory string
	clock     func() time.Time
}

// NewTranscriptWriter writes transcripts under directory. An empty directory disables transcripts
// and yields a nil writer.
func NewTranscriptWriter(directory string) *TranscriptWriter {
	if len(strings.TrimSpace(directory)) == 0 {
		return nil
	}
	return &TranscriptWriter{directory: directory, clock: time.Now}
}

// Transcript is an open transcript file.
type Transcript struct {
	mutex      sync.Mutex
	file       *os.File
	writer     *bufio.Writer
	writeError error
}

// Open creates <unix seconds>_<module>_<task>.log, creating the directory when needed.
func (transcriptWriter *TranscriptWriter) Open(module string, taskName string) (*Transcript, error) {
	if transcriptWriter == nil {
		return nil, nil
	}
	if directoryError := os.MkdirAll(transcriptWriter.directory, transcriptDirectoryPermissionsConstant); directoryError != nil {
		return nil, directoryError
	}

	nameParts := []string{strconv.FormatInt(transcriptWriter.clock().Unix(), 10)}
	if len(module) > 0 {
		nameParts = append(nameParts, module)
	}
	if len(taskName) > 0 {
		nameParts = append(nameParts, sanitizeFileName(taskName))
	}
	fileName := strings.Join(nameParts, transcriptNameSeparatorConstant) + transcriptFileExtensionConstant

	file, openError := os.OpenFile(filepath.Join(transcriptWriter.directory, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, transcriptFilePermissionsConstant)
	if openError != nil {
		return nil, openError
	}
	return &Transcript{file: file, writer: bufio.NewWriter(file)}, nil
}

// Path returns the transcript file location.
func (transcript *Transcript) Path() string {
	if transcript == nil {
		return ""
	}
	return transcript.file.Name()
}

// CommandStarted writes the CMD and PID lines of a command line.
func (transcript *Transcript) CommandStarted(command string, processID int, startTime time.Time) {
	if transcript == nil {
		return
	}
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	transcript.writeOperation(startTime, transcriptCommandOperationConstant, command)
	transcript.writeOperation(startTime, transcriptProcessOperationConstant, strconv.Itoa(processID))
	transcript.flush()
}

// OutputReceived writes one chunk as OUT or ERR lines as soon as it arrives.
func (transcript *Transcript) OutputReceived(stream StreamName, receivedAt time.Time, data string) {
	if transcript == nil {
		return
	}
	operation := transcriptOutputOperationConstant
	if stream == StreamStandardError {
		operation = transcriptErrorOperationConstant
	}
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	transcript.writeOperation(receivedAt, operation, data)
	transcript.flush()
}

// CommandFinished writes the END line with the exit code.
func (transcript *Transcript) CommandFinished(record ExecutionRecord) {
	if transcript == nil {
		return
	}
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	transcript.writeOperation(record.EndTime, transcriptExitOperationConstant, strconv.Itoa(record.ExitCode))
	transcript.flush()
}

// Err returns the first write error seen so far.
func (transcript *Transcript) Err() error {
	if transcript == nil {
		return nil
	}
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	return transcript.writeError
}

func (transcript *Transcript) flush() {
	if flushError := transcript.writer.Flush(); flushError != nil && transcript.writeError == nil {
		transcript.writeError = flushError
	}
}

// Close flushes and closes the file.
func (transcript *Transcript) Close() error {
	if transcript == nil {
		return nil
	}
	transcript.mutex.Lock()
	defer transcript.mutex.Unlock()
	flushError := transcript.writer.Flush()
	closeError := transcript.file.Close()
	if flushError != nil {
		return flushError
	}
	return closeError
}

// writeOperation prefixes every line of data with the timestamp and the operation.
func (transcript *Transcript) writeOperation(timestamp time.Time, operation string, data string) {
	prefix := fmt.Sprintf("%.6f %s ", float64(timestamp.UnixMicro())/1e6, operation)
	transcript.writer.WriteString(prefixLines(prefix, data))
}

func sanitizeFileName(name string) string {
	return strings.Map(func(character rune) rune {
		switch character {
		case '/', '\\', ':', '{', '}', ' ':
			return '-'
		}
		return character
	}, name)
}
