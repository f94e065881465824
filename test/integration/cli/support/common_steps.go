package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

const commandTimeout = 60 * time.Second

// iRunCommand executes a CLI command. A leading "docscan" resolves to the
// binary built by TestMain.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "docscan" {
		if bin := os.Getenv("DOCSCAN_BIN"); bin != "" {
			parts[0] = bin
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastStdout = stdout.String()
	testCtx.LastOutput = stdout.String() + stderr.String()
	testCtx.LastError = err

	testCtx.LastExitCode = 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("failed to run %q: %w", command, err)
		}
		testCtx.LastExitCode = exitErr.ExitCode()
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command %q exited with %d:\n%s", testCtx.LastCommand, testCtx.LastExitCode, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command %q succeeded, expected failure:\n%s", testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("expected exit code %d, got %d:\n%s", code, testCtx.LastExitCode, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	text = testCtx.substitute(text)
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	text = testCtx.substitute(text)
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON checks stdout only; logs go to stderr.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastStdout)) {
		return fmt.Errorf("stdout is not valid JSON:\n%s", testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldHaveLines(n int) error {
	out := strings.TrimRight(testCtx.LastStdout, "\n")
	got := 0
	if out != "" {
		got = len(strings.Split(out, "\n"))
	}
	if got != n {
		return fmt.Errorf("expected %d lines on stdout, got %d:\n%s", n, got, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.resolvePath(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s to exist: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	path := testCtx.resolvePath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("expected file %s not to exist", path)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, text string) error {
	data, err := os.ReadFile(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain %q", name, text)
	}
	return nil
}

func (testCtx *TestContext) theDirectoryShouldContainFiles(name string, n int) error {
	entries, err := os.ReadDir(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	files := 0
	for _, e := range entries {
		if !e.IsDir() {
			files++
		}
	}
	if files != n {
		return fmt.Errorf("directory %s holds %d files, expected %d", name, files, n)
	}
	return nil
}

func (testCtx *TestContext) aDirectory(name string) error {
	return os.MkdirAll(testCtx.resolvePath(name), 0o750)
}

func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	path := testCtx.resolvePath(name)
	if err := os.WriteFile(path, []byte(content.Content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) iSetEnvironmentVariable(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substitute(value))
	return nil
}

func (testCtx *TestContext) theOutputShouldShowUsage() error {
	if !strings.Contains(testCtx.LastOutput, "Usage:") {
		return fmt.Errorf("expected usage text, got:\n%s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldListCommands(table *godog.Table) error {
	for _, row := range table.Rows {
		name := row.Cells[0].Value
		if !strings.Contains(testCtx.LastOutput, name) {
			return fmt.Errorf("help output does not list %q:\n%s", name, testCtx.LastOutput)
		}
	}
	return nil
}

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should have (\d+) lines?$`, testCtx.theOutputShouldHaveLines)
	sc.Step(`^the output should show usage information$`, testCtx.theOutputShouldShowUsage)
	sc.Step(`^the output should list the commands:$`, testCtx.theOutputShouldListCommands)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) files?$`, testCtx.theDirectoryShouldContainFiles)
	sc.Step(`^a directory "([^"]*)"$`, testCtx.aDirectory)
	sc.Step(`^a file "([^"]*)" with content:$`, testCtx.aFileWithContent)
	sc.Step(`^I set environment variable "([^"]*)" to "([^"]*)"$`, testCtx.iSetEnvironmentVariable)
}
