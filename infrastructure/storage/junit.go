package storage

import (
	"encoding/xml"
	"fmt"
	"time"

	"biztrack_e2e/domain/entities"
)

type junitSuite struct {
	XMLName   xml.Name    `xml:"testsuite"`
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr,omitempty"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	Skipped   *junitMessage `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Body    string `xml:",chardata"`
}

// MarshalJUnit renders results as a single JUnit testsuite
func MarshalJUnit(name string, results []*entities.RunResult) ([]byte, error) {
	suite := junitSuite{Name: name, Tests: len(results)}

	var total time.Duration
	var started time.Time
	for _, r := range results {
		total += r.Duration
		if started.IsZero() || (!r.StartedAt.IsZero() && r.StartedAt.Before(started)) {
			started = r.StartedAt
		}

		tc := junitCase{
			Name:      r.ScenarioID + " " + r.Title,
			ClassName: name,
			Time:      seconds(r.Duration),
		}

		switch r.Status {
		case entities.RunFailed:
			suite.Failures++
			tc.Failure = &junitMessage{Message: r.Error, Type: string(r.ErrorKind), Body: pageBody(r)}
		case entities.RunError:
			suite.Errors++
			tc.Error = &junitMessage{Message: r.Error, Type: string(r.ErrorKind), Body: pageBody(r)}
		case entities.RunSkipped:
			suite.Skipped++
			tc.Skipped = &junitMessage{Message: r.Error}
		}

		for _, step := range r.Steps {
			line := fmt.Sprintf("%d. %s (%s)", step.Index+1, step.Description, step.Duration.Round(time.Millisecond))
			if step.Error != "" {
				line += ": " + step.Error
			}
			tc.SystemOut += line + "\n"
		}

		suite.Cases = append(suite.Cases, tc)
	}

	suite.Time = seconds(total)
	if !started.IsZero() {
		suite.Timestamp = started.UTC().Format(time.RFC3339)
	}

	data, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode junit report: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

func pageBody(r *entities.RunResult) string {
	body := ""
	if r.Page != nil {
		body = fmt.Sprintf("url: %s\ntitle: %s\n\n%s", r.Page.URL, r.Page.Title, r.Page.TextContent)
	}
	if r.Screenshot != "" {
		body += "\n\nscreenshot: " + r.Screenshot
	}
	return body
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
