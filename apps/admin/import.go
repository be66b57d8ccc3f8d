package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/peerbot/peerbot/core/exam"
)

var (
	groupSepRegex   = regexp.MustCompile(`(?m)^===[ \t]*$`)
	variantSepRegex = regexp.MustCompile(`(?m)^---[ \t]*$`)
)

// importQuestions loads a questions file into the question bank. The file is
// a sequence of groups opened by a `===` line; group N holds the variants of
// question N, separated by `---` lines. Every group must hold the same number
// of variants so the answering grid stays rectangular.
func (cli *commandLine) importQuestions(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	groups, err := parseQuestionsFile(f)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return errors.New("no question group found; groups open with a '===' line")
	}
	for i, group := range groups[1:] {
		if len(group) != len(groups[0]) {
			return errors.Errorf("group %d has %d variants, group 1 has %d; all groups must match",
				i+2, len(group), len(groups[0]))
		}
	}

	caller := exam.User{Privilege: exam.Privileged}
	for number, group := range groups {
		for variant, text := range group {
			nq := exam.NewQuestion{Number: number + 1, Variant: variant + 1, Text: text}
			if err := cli.svc.AddQuestion(caller, nq); err != nil {
				return errors.Wrapf(err, "importing question %d variant %d", number+1, variant+1)
			}
		}
	}
	fmt.Printf("imported %d questions in %d groups\n", len(groups)*len(groups[0]), len(groups))
	return nil
}

func parseQuestionsFile(r io.Reader) ([][]string, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading questions file")
	}

	var groups [][]string
	chunks := groupSepRegex.Split(string(raw), -1)
	for _, chunk := range chunks[1:] { // anything before the first `===` is a preamble
		var variants []string
		for _, text := range variantSepRegex.Split(chunk, -1) {
			if text = strings.TrimSpace(text); text != "" {
				variants = append(variants, text)
			}
		}
		if len(variants) > 0 {
			groups = append(groups, variants)
		}
	}
	return groups, nil
}
