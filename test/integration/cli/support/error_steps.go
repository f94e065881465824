package support

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if !strings.Contains(strings.ToLower(testCtx.LastOutput), strings.ToLower(text)) {
		return fmt.Errorf("expected error mentioning %q, got:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMentionUnknownFlag() error {
	return testCtx.theErrorShouldMention("unknown flag")
}

func (testCtx *TestContext) theErrorShouldSuggestAvailableCommands() error {
	out := testCtx.LastOutput
	if strings.Contains(out, "unknown command") || strings.Contains(out, "Did you mean") {
		return nil
	}
	return fmt.Errorf("expected a command suggestion, got:\n%s", out)
}

func (testCtx *TestContext) theOutputShouldContainVersionInformation() error {
	if !strings.Contains(testCtx.LastOutput, "docscan version") && !strings.Contains(testCtx.LastOutput, "Version:") {
		return fmt.Errorf("no version information in output:\n%s", testCtx.LastOutput)
	}
	return nil
}

// RegisterErrorSteps registers assertions on failure output.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the error should mention an unknown flag$`, testCtx.theErrorShouldMentionUnknownFlag)
	sc.Step(`^the error should suggest available commands$`, testCtx.theErrorShouldSuggestAvailableCommands)
	sc.Step(`^the output should contain version information$`, testCtx.theOutputShouldContainVersionInformation)
}
