package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/fra/assembler"
	"fra-engine/internal/fra/mapping"
	"fra-engine/internal/fra/sections"
	"fra-engine/internal/fra/store"
	"fra-engine/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockAssets struct {
	mock.Mock
}

func (m *MockAssets) Resolve(ctx context.Context, instanceID string) models.ResolvedAssets {
	args := m.Called(ctx, instanceID)
	return args.Get(0).(models.ResolvedAssets)
}

func (m *MockAssets) Fetch(ctx context.Context, assets models.AssetMap) models.PhotoSet {
	args := m.Called(ctx, assets)
	return args.Get(0).(models.PhotoSet)
}

func (m *MockAssets) DeletePhoto(ctx context.Context, instanceID, path string) error {
	args := m.Called(ctx, instanceID, path)
	return args.Error(0)
}

// ==========================
// Test Helper Functions
// ==========================

func strPtr(s string) *string { return &s }

func response(id, tag string, order int, value string) models.AuditResponse {
	return models.AuditResponse{QuestionID: id, SemanticTag: tag, OrderIndex: order, Value: strPtr(value)}
}

func createTestFixture() *store.Fixture {
	conducted := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	actions, _ := json.Marshal([]map[string]string{
		{"recommendation": "Replace damaged self-closer on stockroom door", "priority": "High", "dueDate": "2026-10-01"},
		{"recommendation": "Clear storage from rear escape corridor", "priority": "Medium"},
	})
	return &store.Fixture{
		Instance: models.AuditInstance{
			ID:               "test-instance-123",
			TemplateID:       "tpl-fra",
			TemplateCategory: "fire_risk_assessment",
			StoreName:        "High Street Store",
			StoreAddress:     "1 High Street, Leeds",
			Status:           "completed",
			ConductedBy:      "J. Assessor",
			ConductedAt:      &conducted,
		},
		Responses: []models.AuditResponse{
			response("q01", "clientName", 1, "Example Retail Ltd"),
			response("q02", "responsiblePerson", 2, "Store Manager"),
			response("q03", "assessorName", 3, "J. Assessor"),
			response("q04", "floorArea", 4, "80"),
			response("q05", "occupancy", 5, "45 persons"),
			response("q06", "operatingHours", 6, "08:00 - 22:00"),
			response("q07", "sleepingRisk", 7, "No"),
			response("q08", "fireAlarmDescription", 8, "Category L3 addressable system tested weekly"),
			response("q09", "emergencyLighting", 9, "Maintained LED fittings over exits"),
			response("q10", "fireExtinguishers", 10, "2 x CO2, 2 x water mist, serviced 2026"),
			response("q11", "hasSprinklers", 11, "No"),
			response("q12", "escapeRoutes", 12, "Front entrance and rear fire exit to yard"),
			response("q13", "travelDistanceSingle", 13, "12 m"),
			response("q14", "ignitionSources", 14, "Kettle; Electrical distribution board; Heaters"),
			response("q15", "fuelSources", 15, "Stock packaging\nWaste cardboard"),
			response("q16", "peopleAtRisk", 16, "Staff, Customers, Contractors"),
			response("q17", "likelihood", 17, "Medium"),
			response("q18", "consequence", 18, "Moderate harm"),
			response("q19", "significantFindings", 19, "Rear corridor partially obstructed"),
			{QuestionID: "q20", SemanticTag: "actionPlan", OrderIndex: 20, Payload: actions},
		},
	}
}

func createTestEngine(t *testing.T, st store.Store, assets AssetResolver, embed bool) *Engine {
	t.Helper()
	e := New(st, mapping.NewMapper(nil, logger.NewTestLogger(t)), assets,
		Options{Version: "1.0.0", EmbedPhotos: embed}, logger.NewTestLogger(t))
	e.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	e.newBuild = func() string { return "b1d2c3" }
	return e
}

func noAssets() *MockAssets {
	m := &MockAssets{}
	m.On("Resolve", mock.Anything, mock.Anything).Return(models.ResolvedAssets{})
	return m
}

func documentXML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatal("word/document.xml missing")
	return ""
}

// expectedTexts lists, in order, every text run the document body should hold
// for the given sections when no photograph is embedded.
func expectedTexts(secs []assembler.Section) []string {
	var out []string
	add := func(s string) { out = append(out, strings.Split(s, "\n")...) }
	for _, s := range secs {
		add(s.Title)
		for _, b := range s.Blocks {
			switch b.Kind {
			case assembler.BlockField:
				add(b.Label + ": ")
				add(b.Text)
			case assembler.BlockList:
				add(b.Label)
				for _, item := range b.Items {
					add("• " + item)
				}
				if len(b.Items) == 0 && b.Text != "" {
					add(b.Text)
				}
			case assembler.BlockTable:
				cols := len(b.Table.Header)
				for _, r := range b.Table.Rows {
					if len(r) > cols {
						cols = len(r)
					}
				}
				if cols == 0 {
					continue
				}
				if b.Table.Caption != "" {
					add(b.Table.Caption)
				}
				rows := b.Table.Rows
				if len(b.Table.Header) > 0 {
					rows = append([][]string{b.Table.Header}, rows...)
				}
				for _, r := range rows {
					for i := 0; i < cols; i++ {
						cell := ""
						if i < len(r) {
							cell = r[i]
						}
						add(cell)
					}
				}
			case assembler.BlockPhotos:
				for _, g := range b.Photos {
					add(assembler.PlaceholderTitle(g.Placeholder))
					for _, a := range g.Assets {
						add("Photograph not embedded: " + a.Filename)
					}
				}
			default:
				add(b.Text)
			}
		}
	}
	return out
}

// documentTexts decodes the body and returns its text runs and bookmark
// names in document order.
func documentTexts(t *testing.T, body string) (texts, bookmarks []string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(body))
	var cur *strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				cur = &strings.Builder{}
			case "bookmarkStart":
				for _, a := range el.Attr {
					if a.Name.Local == "name" {
						bookmarks = append(bookmarks, a.Value)
					}
				}
			}
		case xml.CharData:
			if cur != nil {
				cur.Write(el)
			}
		case xml.EndElement:
			if el.Name.Local == "t" && cur != nil {
				texts = append(texts, cur.String())
				cur = nil
			}
		}
	}
	return texts, bookmarks
}

func sectionBookmarks(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "sec_" + strings.NewReplacer("-", "_", " ", "_").Replace(id)
	}
	return out
}

func exitPhotos() *MockAssets {
	m := &MockAssets{}
	m.On("Resolve", mock.Anything, mock.Anything).Return(models.ResolvedAssets{
		Order:  []string{"fire-exit"},
		Assets: models.AssetMap{"fire-exit": {{Path: "fra/x/photos/fire-exit/door & frame.jpg", Filename: "door & frame.jpg"}}},
	})
	return m
}

// assertRenditionsMatch checks the document body carries exactly the view's
// sections and content, in the same order.
func assertRenditionsMatch(t *testing.T, view *View, doc *Document) {
	t.Helper()
	viewIDs := make([]string, len(view.Sections))
	for i, s := range view.Sections {
		viewIDs[i] = s.ID
	}
	assert.Equal(t, viewIDs, doc.Sections)

	texts, bookmarks := documentTexts(t, documentXML(t, doc.Bytes))
	assert.Equal(t, sectionBookmarks(viewIDs), bookmarks)
	assert.Equal(t, expectedTexts(view.Sections), texts)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestEngine_Document_TestInstance(t *testing.T) {
	e := createTestEngine(t, store.NewMemoryStore(createTestFixture()), noAssets(), false)

	doc, err := e.Document(context.Background(), "test-instance-123")
	require.NoError(t, err)

	assert.Greater(t, len(doc.Bytes), 10*1024)
	assert.Equal(t, []byte("PK\x03\x04"), doc.Bytes[:4])
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", doc.ContentType)
	assert.Regexp(t, `^FRA-.+\.docx$`, doc.Filename)
	assert.NotContains(t, doc.Sections, sections.Sprinklers)

	body := documentXML(t, doc.Bytes)
	assert.Contains(t, body, "test-instance-123")
	assert.Contains(t, body, "Generated: 2026-10-19T12:00:00Z | Build: 1.0.0+b1d2c3")
	assert.Contains(t, body, "Replace damaged self-closer on stockroom door")
	assert.GreaterOrEqual(t, strings.Count(body, "<w:tbl>"), 2)
	assert.GreaterOrEqual(t, strings.Count(body, "<w:sectPr>"), 2)
}

func TestEngine_ViewAndDocumentParity(t *testing.T) {
	for _, sprinklers := range []string{"Yes", "No"} {
		t.Run(sprinklers, func(t *testing.T) {
			fx := createTestFixture()
			fx.Instance.StoreName = `Smith & Sons <"Leeds">`
			fx.Responses[10].Value = strPtr(sprinklers)
			fx.Responses[18].Value = strPtr("Rear corridor < 1m wide & unlit\nBins stored by exit")
			fx.Responses = append(fx.Responses, response("q21", "sprinklerDescription", 21, "Wet pipe system"))
			e := createTestEngine(t, store.NewMemoryStore(fx), exitPhotos(), false)

			view, err := e.View(context.Background(), "test-instance-123")
			require.NoError(t, err)
			doc, err := e.Document(context.Background(), "test-instance-123")
			require.NoError(t, err)

			assertRenditionsMatch(t, view, doc)

			body := documentXML(t, doc.Bytes)
			assert.Contains(t, body, "Rear corridor &lt; 1m wide &amp; unlit")
			if sprinklers == "Yes" {
				assert.Contains(t, doc.Sections, sections.Sprinklers)
				assert.Equal(t, "Wet pipe system", *view.Data.SprinklerDescription)
			} else {
				assert.NotContains(t, doc.Sections, sections.Sprinklers)
				assert.Nil(t, view.Data.SprinklerDescription)
			}
		})
	}
}

func TestEngine_MinimalInstanceScenario(t *testing.T) {
	fx := &store.Fixture{
		Instance: models.AuditInstance{
			ID:               "test-instance-123",
			TemplateID:       "tpl-fra",
			TemplateCategory: "fire_risk_assessment",
			Status:           "completed",
		},
		Responses: []models.AuditResponse{
			response("q01", "premisesName", 1, "Test Store"),
			response("q02", "hasSprinklers", 2, "false"),
		},
	}
	e := createTestEngine(t, store.NewMemoryStore(fx), noAssets(), false)

	view, err := e.View(context.Background(), "test-instance-123")
	require.NoError(t, err)
	doc, err := e.Document(context.Background(), "test-instance-123")
	require.NoError(t, err)

	assertRenditionsMatch(t, view, doc)

	require.NotNil(t, view.Data.HasSprinklers)
	assert.False(t, *view.Data.HasSprinklers)
	assert.NotContains(t, doc.Sections, sections.Sprinklers)
	assert.Equal(t, "Test Store", *view.Data.PremisesName)

	var plan *assembler.Table
	for _, s := range view.Sections {
		if s.ID == sections.ActionPlan {
			require.NotEmpty(t, s.Blocks)
			plan = s.Blocks[0].Table
		}
	}
	require.NotNil(t, plan)
	require.Len(t, plan.Rows, 1)
	assert.Equal(t, "No actions recorded", plan.Rows[0][1])

	body := documentXML(t, doc.Bytes)
	assert.Contains(t, body, "Test Store")
	assert.Contains(t, body, "No actions recorded")
	assert.NotContains(t, body, `w:name="sec_sprinklers"`)
}

func TestEngine_OverlayPrecedence(t *testing.T) {
	st := store.NewMemoryStore(createTestFixture())
	e := createTestEngine(t, st, noAssets(), false)
	ctx := context.Background()

	before, err := e.Map(ctx, "test-instance-123")
	require.NoError(t, err)
	assert.Equal(t, "80", before.FloorArea.Text)

	_, err = e.UpsertCustomData(ctx, "test-instance-123", map[string]interface{}{"floorArea": "120"})
	require.NoError(t, err)

	after, err := e.Map(ctx, "test-instance-123")
	require.NoError(t, err)
	assert.Equal(t, "120", after.FloorArea.Text)
	require.NotNil(t, after.FloorArea.Value)
	assert.Equal(t, 120.0, *after.FloorArea.Value)
	assert.Equal(t, "45 persons", after.Occupancy.Text, "unpatched fields keep derived values")
	assert.NotNil(t, after.CustomDataUpdatedAt)

	view, err := e.View(ctx, "test-instance-123")
	require.NoError(t, err)
	assert.Equal(t, "120", view.Data.FloorArea.Text)
}

func TestEngine_Validation(t *testing.T) {
	fx := createTestFixture()
	other := &store.Fixture{Instance: models.AuditInstance{ID: "hygiene-1", TemplateID: "tpl-h", TemplateCategory: "food_hygiene"}}
	assets := &MockAssets{}
	e := createTestEngine(t, store.NewMemoryStore(fx, other), assets, false)

	tests := []struct {
		name       string
		instanceID string
		code       apperrors.ErrorCode
	}{
		{"missing id", "", apperrors.ErrCodeMissingParameter},
		{"blank id", "   ", apperrors.ErrCodeMissingParameter},
		{"unknown instance", "nope", apperrors.ErrCodeInstanceNotFound},
		{"wrong template", "hygiene-1", apperrors.ErrCodeNotFRATemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.View(context.Background(), tt.instanceID)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.FromError(err).Code)

			_, err = e.Document(context.Background(), tt.instanceID)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.FromError(err).Code)
		})
	}
	assets.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestEngine_Document_FetchesPhotosWhenEmbedding(t *testing.T) {
	resolved := models.ResolvedAssets{
		Order:  []string{"exits"},
		Assets: models.AssetMap{"exits": {{Path: "fra/test-instance-123/photos/exits/a.jpg", Filename: "a.jpg"}}},
	}
	assets := &MockAssets{}
	assets.On("Resolve", mock.Anything, "test-instance-123").Return(resolved)
	assets.On("Fetch", mock.Anything, resolved.Assets).Return(models.PhotoSet{})
	e := createTestEngine(t, store.NewMemoryStore(createTestFixture()), assets, true)

	doc, err := e.Document(context.Background(), "test-instance-123")
	require.NoError(t, err)
	assert.Contains(t, documentXML(t, doc.Bytes), "Photograph not embedded: a.jpg")
	assets.AssertExpectations(t)
}

func TestEngine_PhotoGroupsFollowListingOrder(t *testing.T) {
	resolved := models.ResolvedAssets{
		Order: []string{"zone-exit", "alarm-panel"},
		Assets: models.AssetMap{
			"alarm-panel": {{Path: "fra/test-instance-123/photos/alarm-panel/p.jpg", Filename: "p.jpg"}},
			"zone-exit":   {{Path: "fra/test-instance-123/photos/zone-exit/z.jpg", Filename: "z.jpg"}},
		},
	}
	assets := &MockAssets{}
	assets.On("Resolve", mock.Anything, "test-instance-123").Return(resolved)
	e := createTestEngine(t, store.NewMemoryStore(createTestFixture()), assets, false)

	view, err := e.View(context.Background(), "test-instance-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"zone-exit", "alarm-panel"}, view.PhotoOrder)
	var groups []string
	for _, s := range view.Sections {
		if s.ID != sections.Photos {
			continue
		}
		for _, b := range s.Blocks {
			for _, g := range b.Photos {
				groups = append(groups, g.Placeholder)
			}
		}
	}
	assert.Equal(t, []string{"zone-exit", "alarm-panel"}, groups)

	doc, err := e.Document(context.Background(), "test-instance-123")
	require.NoError(t, err)
	body := documentXML(t, doc.Bytes)
	zone, alarm := strings.Index(body, "Zone Exit"), strings.Index(body, "Alarm Panel")
	require.GreaterOrEqual(t, zone, 0)
	require.GreaterOrEqual(t, alarm, 0)
	assert.Less(t, zone, alarm)
}

func TestEngine_DeletePhoto(t *testing.T) {
	assets := &MockAssets{}
	assets.On("DeletePhoto", mock.Anything, "inst-1", "fra/inst-1/photos/x/a.jpg").Return(nil)
	e := createTestEngine(t, store.NewMemoryStore(), assets, false)

	require.NoError(t, e.DeletePhoto(context.Background(), "inst-1", "fra/inst-1/photos/x/a.jpg"))

	err := e.DeletePhoto(context.Background(), "", "fra/inst-1/photos/x/a.jpg")
	assert.Equal(t, apperrors.ErrCodeMissingParameter, apperrors.FromError(err).Code)
	assets.AssertNumberOfCalls(t, "DeletePhoto", 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "FRA-test-ins.docx", Filename("test-instance-123"))
	assert.Equal(t, "FRA-3f2a9c1b.docx", Filename("3f2a9c1b-8d7e-4a1b-9c0d-112233445566"))
	assert.Equal(t, "FRA-abc.docx", Filename("a/b c"))
	assert.Equal(t, "FRA-document.docx", Filename("///"))
}
