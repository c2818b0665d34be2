package gcpregistry

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
)

// googleDefaultTokenSource adapts application-default credentials to
// k8s.TokenSource: every GKE master reach uses the same credentials the
// crawl's GCP API client authenticates with.
type googleDefaultTokenSource struct{}

func (googleDefaultTokenSource) Token(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("gcpregistry: resolving default credentials: %w", err)
	}
	token, err := creds.TokenSource.Token()
	if err != nil {
		return "", fmt.Errorf("gcpregistry: minting GKE master token: %w", err)
	}
	return token.AccessToken, nil
}
