package devices

import (
	"net/http"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/auth/httptransport"

	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
)

// NewDirectoryHTTPClient returns an http.Client that signs requests with a
// service account impersonating subject through domain-wide delegation.
// An empty keyFile falls back to application default credentials.
func NewDirectoryHTTPClient(keyFile, subject string) (*http.Client, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{constants.DirectoryDeviceScope},
		CredentialsFile: keyFile,
		Subject:         subject,
	})
	if err != nil {
		return nil, errors.NewConfigError("directory", "load service account credentials", err)
	}

	client, err := httptransport.NewClient(&httptransport.Options{
		Credentials: creds,
	})
	if err != nil {
		return nil, errors.NewConfigError("directory", "build authenticated client", err)
	}
	client.Timeout = constants.DefaultHTTPTimeout
	return client, nil
}
