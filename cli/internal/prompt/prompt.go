// Package prompt builds the system and user messages sent to the commit
// message backend from a repository snapshot. Build is pure: the same
// RepositoryContext and Options always yield the same Prompt.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aicommit/cli/internal/git"
)

// instructionsFilename is read from the state dir (.aicommit) when present.
const instructionsFilename = "instructions.md"

// noRecentCommits stands in for an empty history list.
const noRecentCommits = "- No recent commits found"

// SystemPrompt instructs the model how to derive a message. Its final
// instructions (single ```text block, "type: message" header) are the
// contract commitmsg.Clean relies on.
const SystemPrompt = `You are an AI programming assistant, helping a software developer to come with the best git commit message for their code changes.
You excel in interpreting the purpose behind code changes to craft succinct, clear commit messages that adhere to the repository's guidelines.

# First, think step-by-step:
1. Analyze the CODE CHANGES thoroughly to understand what's been modified.
2. Use the ORIGINAL CODE to understand the context of the CODE CHANGES. Use the line numbers to map the CODE CHANGES to the ORIGINAL CODE.
3. Identify the purpose of the changes to answer the *why* for the commit messages, also considering the optionally provided RECENT USER COMMITS.
4. Review the provided RECENT REPOSITORY COMMITS to identify established commit message conventions. Focus on the format and style, ignoring commit-specific details like refs, tags, and authors.
5. Generate a thoughtful and succinct commit message for the given CODE CHANGES. It MUST follow the established writing conventions.
6. Remove any meta information like issue references, tags, or author names from the commit message. The developer will add them.
7. Now only show your message, wrapped with a single markdown ` + "```text" + ` codeblock! Do not provide any explanations or details
8. Choose type based on code changes (feat, fix, docs, style, refactor, perf, test, or chore)
9. Do not copy the recent commits.
Keep your answers short and impersonal.`

// Prompt is the two-role payload for one generation request.
type Prompt struct {
	System string
	User   string
}

// Options carries optional prompt inputs that are not part of the repository snapshot.
type Options struct {
	// CustomInstructions is embedded verbatim in the <custom-instructions> block.
	CustomInstructions string
}

// Build assembles the prompt for rc. The diff, staged files and recent
// subjects are embedded verbatim.
func Build(rc git.RepositoryContext, opts Options) Prompt {
	return Prompt{System: SystemPrompt, User: UserPrompt(rc, opts)}
}

// UserPrompt renders the user message for rc.
func UserPrompt(rc git.RepositoryContext, opts Options) string {
	recent := noRecentCommits
	if len(rc.RecentCommitSubjects) > 0 {
		lines := make([]string, len(rc.RecentCommitSubjects))
		for i, s := range rc.RecentCommitSubjects {
			lines[i] = "- " + s
		}
		recent = strings.Join(lines, "\n")
	}
	files := make([]string, len(rc.StagedFiles))
	for i, f := range rc.StagedFiles {
		files[i] = "  - " + f
	}

	var b strings.Builder
	b.WriteString("<user-commits>\n# RECENT USER COMMITS (For reference only, do not copy!):\n")
	b.WriteString(recent)
	b.WriteString("\n\n</user-commits>\n<recent-commits>\n# RECENT REPOSITORY COMMITS (For reference only, do not copy!):\n")
	b.WriteString(recent)
	b.WriteString("\n\n</recent-commits>\n<changes>\n<original-code>\n# ORIGINAL CODE:\n<attachment>\n# Staged files:\n")
	b.WriteString(strings.Join(files, "\n"))
	b.WriteString("\n</attachment>\n\n</original-code>\n<code-changes>\n# CODE CHANGES:\n```diff\n")
	b.WriteString(rc.Diff)
	b.WriteString("\n```\n</code-changes>\n\n</changes>\n<reminder>\n")
	b.WriteString("Now generate a commit message that describes the CODE CHANGES.\n")
	b.WriteString("DO NOT COPY commits from RECENT COMMITS, but use it as reference for the commit style.\n")
	b.WriteString("ONLY return a single markdown code block, NO OTHER PROSE!\n")
	b.WriteString("MODEL: type: message\n\ncommit message goes here\n\n</reminder>\n<custom-instructions>\n")
	if s := strings.TrimSpace(opts.CustomInstructions); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\n</custom-instructions>")
	return b.String()
}

// LoadCustomInstructions returns the trimmed contents of
// stateDir/instructions.md. A missing file (or empty stateDir) yields "" with
// nil error; any other read error is returned so the user can see it.
func LoadCustomInstructions(stateDir string) (string, error) {
	if stateDir == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(stateDir, instructionsFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read custom instructions: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
