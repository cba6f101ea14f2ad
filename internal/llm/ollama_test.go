package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListOllamaModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"llama3:latest","size":4661224676,"modified_at":"2024-05-01T10:00:00Z"},{"name":"mistral:7b","size":1}]}`)
	}))
	defer srv.Close()

	models, err := ListOllamaModels(context.Background(), srv.URL+"/v1")
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "llama3:latest", models[0].Name)
	require.Equal(t, int64(4661224676), models[0].Size)
}

func TestListOllamaModelsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := ListOllamaModels(context.Background(), srv.URL)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}
