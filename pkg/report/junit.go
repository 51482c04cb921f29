package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

// JUnitFile is the JUnit XML report written next to report.json.
const JUnitFile = "junit.xml"

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

// junitSuite is one flow; its steps are the test cases.
type junitSuite struct {
	Name      string      `xml:"name,attr"`
	File      string      `xml:"file,attr,omitempty"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *junitSkip    `xml:"skipped,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkip struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit writes suite as JUnit XML to dir/junit.xml.
func WriteJUnit(dir string, suite *core.SuiteResult) error {
	if err := ensureDir(dir); err != nil {
		return err
	}
	data, err := xml.MarshalIndent(buildJUnit(suite), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal junit: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(filepath.Join(dir, JUnitFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", JUnitFile, err)
	}
	return nil
}

func buildJUnit(suite *core.SuiteResult) junitSuites {
	out := junitSuites{Name: suite.Name, Time: seconds(suite.Duration.Seconds())}
	for _, f := range suite.Flows {
		js := junitSuite{
			Name:      f.Name,
			File:      f.FilePath,
			Time:      seconds(f.Duration.Seconds()),
			Timestamp: f.StartTime.UTC().Format("2006-01-02T15:04:05"),
		}
		class := strings.TrimSuffix(filepath.Base(f.FilePath), filepath.Ext(f.FilePath))
		for _, s := range f.Steps {
			jc := junitCase{
				Name:      fmt.Sprintf("%02d %s", s.Index+1, s.Description),
				Classname: class,
				Time:      seconds(s.Duration.Seconds()),
			}
			switch s.Status {
			case core.StatusFailed:
				jc.Failure = &junitProblem{Message: s.Error, Type: s.Category.String(), Body: s.Message}
				js.Failures++
			case core.StatusErrored:
				jc.Error = &junitProblem{Message: s.Error, Type: s.Category.String(), Body: s.Message}
				js.Errors++
			case core.StatusSkipped:
				jc.Skipped = &junitSkip{Message: s.Message}
				js.Skipped++
			}
			js.Cases = append(js.Cases, jc)
		}
		js.Tests = len(js.Cases)

		out.Tests += js.Tests
		out.Failures += js.Failures
		out.Errors += js.Errors
		out.Skipped += js.Skipped
		out.Suites = append(out.Suites, js)
	}
	return out
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
