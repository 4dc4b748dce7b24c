package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyseg/tinyseg/pkg/ingest"
	"github.com/tinyseg/tinyseg/pkg/store/badger"
)

// TestE2E_SegmentAndManage runs the full upload → segment → registry flow
// against an in-memory BadgerDB store, the same wiring main uses.
func TestE2E_SegmentAndManage(t *testing.T) {
	st, err := badger.New(badger.Config{InMemory: true})
	require.NoError(t, err)
	defer st.Close()

	handler := ingest.NewHandler(st, ingest.NewProgressHub())
	router := setupRouter(handler, st, "")

	// Build a CSV with four spending archetypes so clustering has
	// structure to find.
	var csvBuf bytes.Buffer
	csvBuf.WriteString("customer,receipt,purchase_date,qty,unit_price\n")
	for c := 0; c < 16; c++ {
		orders := 1 + c%4
		for o := 0; o < orders; o++ {
			day := 1 + (c+o*3)%27
			fmt.Fprintf(&csvBuf, "cust%02d,R%02d%02d,2024-03-%02d 09:30:00,%d,%d.00\n",
				c, c, o, day, 1+o%3, 5+c)
		}
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "transactions.csv")
	require.NoError(t, err)
	_, err = fw.Write(csvBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.WriteField("business_name", "corner-shop"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/v1/segment", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var segResp struct {
		Status    string `json:"status"`
		Customers []struct {
			CustomerID string `json:"customer_id"`
			Segment    string `json:"segment_name"`
		} `json:"customers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &segResp))
	assert.Equal(t, "success", segResp.Status)
	assert.Len(t, segResp.Customers, 16)
	for _, c := range segResp.Customers {
		assert.NotEmpty(t, c.Segment)
	}

	// The business is now registered.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/businesses/corner-shop", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	// Health reports the stored business and model.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var health struct {
		Status string `json:"status"`
		Store  struct {
			Businesses int `json:"businesses"`
			Models     int `json:"models"`
		} `json:"store"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Store.Businesses)
	assert.Equal(t, 1, health.Store.Models)

	// Deleting the business removes the record and the model.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("DELETE", "/v1/businesses/corner-shop", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/businesses/corner-shop", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
