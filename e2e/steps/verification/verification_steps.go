package verification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"

	"voxid/e2e/fixtures"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	POSTMultipart(path string, fields map[string]string, uploads []fixtures.Upload) error
	GET(path string, headers map[string]string) error
	DELETE(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetAdminToken() string
	AccountID(alias string) string
	DocumentBytes(label string) []byte
}

// RegisterSteps registers verification, query and admin step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	// Intake steps
	ctx.Step(`^account "([^"]*)" uploads:$`, steps.accountUploads)
	ctx.Step(`^account "([^"]*)" is verified with documents "([^"]*)" and "([^"]*)"$`, steps.accountIsVerified)
	ctx.Step(`^I upload a "([^"]*)" file as "([^"]*)" for account "([^"]*)"$`, steps.uploadWithContentType)

	// Lookup steps
	ctx.Step(`^I fetch the record of account "([^"]*)"$`, steps.fetchRecord)
	ctx.Step(`^I fetch the token metadata of account "([^"]*)"$`, steps.fetchTokenMetadata)

	// Query steps
	ctx.Step(`^I filter verified users by:$`, steps.filterBy)
	ctx.Step(`^I request the verification stats$`, steps.requestStats)
	ctx.Step(`^I request a dataset for "([^"]*)" filtered by:$`, steps.requestDataset)
	ctx.Step(`^the users should include account "([^"]*)"$`, steps.usersShouldInclude)
	ctx.Step(`^the users should not include account "([^"]*)"$`, steps.usersShouldNotInclude)
	ctx.Step(`^the response field "([^"]*)" should be at least (\d+)$`, steps.fieldAtLeast)

	// Admin steps
	ctx.Step(`^I clear all verification records as admin "([^"]*)"$`, steps.clearAsAdmin)
	ctx.Step(`^I clear all verification records without an admin token$`, steps.clearWithoutToken)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) initiate(alias string, uploads []fixtures.Upload) error {
	return s.tc.POSTMultipart("/verification/initiate",
		map[string]string{"accountId": s.tc.AccountID(alias)}, uploads)
}

// accountUploads reads a table of | field | document | rows. Equal document
// labels produce equal bytes, so reuse can be expressed across accounts.
func (s *verificationSteps) accountUploads(ctx context.Context, alias string, table *godog.Table) error {
	var uploads []fixtures.Upload
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 2 {
			return fmt.Errorf("row %d: expected | field | document |", i)
		}
		field, label := row.Cells[0].Value, row.Cells[1].Value
		upload, err := fixtures.For(field, s.tc.DocumentBytes(label))
		if err != nil {
			return err
		}
		uploads = append(uploads, upload)
	}
	return s.initiate(alias, uploads)
}

func (s *verificationSteps) accountIsVerified(ctx context.Context, alias, aadhaar, pan string) error {
	primary, err := fixtures.For(fixtures.FieldAadhaar, s.tc.DocumentBytes(aadhaar))
	if err != nil {
		return err
	}
	secondary, err := fixtures.For(fixtures.FieldPAN, s.tc.DocumentBytes(pan))
	if err != nil {
		return err
	}
	if err := s.initiate(alias, []fixtures.Upload{primary, secondary}); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("verification of %s failed with status %d: %s", alias, status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *verificationSteps) uploadWithContentType(ctx context.Context, contentType, field, alias string) error {
	return s.initiate(alias, []fixtures.Upload{{
		Field:       field,
		ContentType: contentType,
		Data:        s.tc.DocumentBytes(alias + "/" + field),
	}})
}

func (s *verificationSteps) fetchRecord(ctx context.Context, alias string) error {
	return s.tc.GET("/verification/user/"+s.tc.AccountID(alias), nil)
}

func (s *verificationSteps) fetchTokenMetadata(ctx context.Context, alias string) error {
	return s.tc.GET("/verification/user/"+s.tc.AccountID(alias)+"/token-metadata", nil)
}

func tableToMap(table *godog.Table) map[string]string {
	out := map[string]string{}
	for i, row := range table.Rows {
		if i == 0 || len(row.Cells) < 2 {
			continue
		}
		out[row.Cells[0].Value] = row.Cells[1].Value
	}
	return out
}

func (s *verificationSteps) filterBy(ctx context.Context, table *godog.Table) error {
	return s.tc.POST("/verification/filter", tableToMap(table))
}

func (s *verificationSteps) requestStats(ctx context.Context) error {
	return s.tc.GET("/verification/stats", nil)
}

func (s *verificationSteps) requestDataset(ctx context.Context, requestedBy string, table *godog.Table) error {
	return s.tc.POST("/verification/dataset", map[string]interface{}{
		"requestedBy": requestedBy,
		"filters":     tableToMap(table),
	})
}

func (s *verificationSteps) listedAccounts() (map[string]bool, error) {
	var body struct {
		Users []struct {
			AccountID string `json:"accountId"`
		} `json:"users"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	out := make(map[string]bool, len(body.Users))
	for _, u := range body.Users {
		out[u.AccountID] = true
	}
	return out, nil
}

func (s *verificationSteps) usersShouldInclude(ctx context.Context, alias string) error {
	listed, err := s.listedAccounts()
	if err != nil {
		return err
	}
	if !listed[s.tc.AccountID(alias)] {
		return fmt.Errorf("account %s not listed\nResponse: %s", alias, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *verificationSteps) usersShouldNotInclude(ctx context.Context, alias string) error {
	listed, err := s.listedAccounts()
	if err != nil {
		return err
	}
	if listed[s.tc.AccountID(alias)] {
		return fmt.Errorf("account %s unexpectedly listed", alias)
	}
	return nil
}

func (s *verificationSteps) fieldAtLeast(ctx context.Context, field string, minimum int) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok {
		return fmt.Errorf("field %s is not a number: %v", field, v)
	}
	if int(n) < minimum {
		return fmt.Errorf("field %s: expected at least %d but got %v", field, minimum, n)
	}
	return nil
}

func (s *verificationSteps) clearAsAdmin(ctx context.Context, actor string) error {
	return s.tc.DELETE("/admin/verification/records", map[string]string{
		"X-Admin-Token":    s.tc.GetAdminToken(),
		"X-Admin-Actor-ID": actor,
	})
}

func (s *verificationSteps) clearWithoutToken(ctx context.Context) error {
	return s.tc.DELETE("/admin/verification/records", nil)
}
