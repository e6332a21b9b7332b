package mirror

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncRequestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		req     SyncRequest
		want    SyncRequest
		wantErr string
	}{
		{
			name: "defaults applied",
			req:  SyncRequest{Owner: "acme", Repo: "widgets"},
			want: SyncRequest{Owner: "acme", Repo: "widgets", Branch: "main"},
		},
		{
			name: "explicit branch kept",
			req:  SyncRequest{Owner: "acme", Repo: "widgets", Branch: "develop", Clean: true},
			want: SyncRequest{Owner: "acme", Repo: "widgets", Branch: "develop", Clean: true},
		},
		{
			name:    "missing owner",
			req:     SyncRequest{Repo: "widgets"},
			wantErr: "owner and repo are required",
		},
		{
			name:    "missing repo",
			req:     SyncRequest{Owner: "acme"},
			wantErr: "owner and repo are required",
		},
		{
			name:    "owner with separator",
			req:     SyncRequest{Owner: "acme/evil", Repo: "widgets"},
			wantErr: "owner, repo and branch must be single path segments",
		},
		{
			name:    "branch dot dot",
			req:     SyncRequest{Owner: "acme", Repo: "widgets", Branch: ".."},
			wantErr: "owner, repo and branch must be single path segments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Normalize()
			if tt.wantErr != "" {
				require.Error(t, err)
				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, tt.wantErr, validationErr.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSyncRequestPrefixAndTargetDir(t *testing.T) {
	req, err := SyncRequest{Owner: "acme", Repo: "widgets"}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, "acme/widgets/main/", req.Prefix())
	assert.Equal(t, filepath.Join("/mnt/mirror", "acme", "widgets", "main"), req.TargetDir("/mnt/mirror"))
}
