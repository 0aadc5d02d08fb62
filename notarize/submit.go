package notarize

import (
	"context"
	"encoding/json"

	"github.com/gravitational/trace"
)

// submissionResponse is the subset of notarytool's JSON output we care about.
//
// Reference: https://developer.apple.com/documentation/notaryapi/submissionresponse/data-data.dictionary
type submissionResponse struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

const statusAccepted = "Accepted"

// SubmitAndWait is a convenience function that wraps the Submit and WaitForSubmission functions.
func (t *Tool) SubmitAndWait(ctx context.Context, pathToPackage string) error {
	submissionID, err := t.Submit(ctx, pathToPackage)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := t.WaitForSubmission(ctx, submissionID); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

func (t *Tool) authArgs() []string {
	return []string{
		"--keychain-profile", t.Creds.KeychainProfile,
		"--team-id", t.Creds.TeamID,
		"--output-format", "json",
	}
}

// Submit will submit a package for notarization.
// A package must be in the format of a zip, package installer (.pkg), or a disk image (.dmg)
// A success will return a submission ID which can be polled on later.
func (t *Tool) Submit(ctx context.Context, pathToPackage string) (id string, err error) {
	args := append([]string{"notarytool", "submit", pathToPackage}, t.authArgs()...)

	stdout, err := t.cmdRunner.RunCommand(ctx, "xcrun", args...)
	for i := 0; err != nil && i < t.retry; i += 1 {
		t.log.ErrorContext(ctx, "submission error", "error", err)
		t.log.InfoContext(ctx, "retrying submission", "count", i+1)
		stdout, err = t.cmdRunner.RunCommand(ctx, "xcrun", args...)
	}

	if err != nil {
		return "", trace.Wrap(err, "failed to submit package for notarization after %d attempts", t.retry+1)
	}

	if t.dryRun { // If dry run, return a fake submission ID
		return "0", nil
	}

	var sub submissionResponse
	if err := json.Unmarshal([]byte(stdout), &sub); err != nil {
		return "", trace.Wrap(err, "failed to parse output from submission request")
	}
	if sub.ID == "" {
		return "", trace.BadParameter("notarytool did not return a submission ID: %s", stdout)
	}

	return sub.ID, nil
}

// WaitForSubmission waits for the submission process to be complete and checks it was accepted.
func (t *Tool) WaitForSubmission(ctx context.Context, id string) error {
	args := append([]string{"notarytool", "wait", id}, t.authArgs()...)
	stdout, err := t.cmdRunner.RunCommand(ctx, "xcrun", args...)
	if err != nil {
		return trace.Wrap(err, "failed while waiting for submission to finish processing")
	}
	t.log.InfoContext(ctx, "waiting done", "stdout", stdout)

	if t.dryRun {
		return nil
	}

	var sub submissionResponse
	if err := json.Unmarshal([]byte(stdout), &sub); err != nil {
		return trace.Wrap(err, "failed to parse output from wait request")
	}
	if sub.Status != statusAccepted {
		return trace.Errorf("submission %s was not accepted: %s %s", id, sub.Status, sub.Message)
	}
	return nil
}
