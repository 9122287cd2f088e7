package regions

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `{
  "services": {
    "securityhub": {"regions": {"aws": ["us-east-1", "eu-west-1", "ap-south-1"], "aws-us-gov": ["us-gov-west-1"]}},
    "iam": {"regions": {"aws": ["us-east-1"]}}
  }
}`

type testScope struct {
	partition string
	regions   []string
	session   aws.Config
}

func (s testScope) Partition() string        { return s.partition }
func (s testScope) Regions() []string        { return s.regions }
func (s testScope) AuditSession() aws.Config { return s.session }

func mustParse(t *testing.T) *Catalog {
	t.Helper()
	c, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	return c
}

func TestSupportedRegions(t *testing.T) {
	c := mustParse(t)

	got, err := c.SupportedRegions("securityhub", "aws-us-gov")
	require.NoError(t, err)
	assert.Equal(t, []string{"us-gov-west-1"}, got)

	got, err = c.SupportedRegions("iam", "aws-cn")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = c.SupportedRegions("nope", "aws")
	assert.Error(t, err)
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := ParseCatalog([]byte("{"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`{"services":{}}`))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"iam", "securityhub"}, c.ServiceNames())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDefaultCatalogCoversPartitions(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	for _, partition := range []string{"aws", "aws-cn", "aws-us-gov"} {
		got, err := c.SupportedRegions("securityhub", partition)
		require.NoError(t, err)
		assert.NotEmpty(t, got, partition)
	}
}

func TestClientsBindsRegionAndSession(t *testing.T) {
	scope := testScope{
		partition: "aws",
		regions:   []string{"eu-west-1", "us-east-1", "sa-east-1"},
		session:   aws.Config{Region: "us-east-1", AppID: "audit"},
	}

	clients, err := Clients(mustParse(t), "securityhub", scope, func(cfg aws.Config) aws.Config { return cfg })
	require.NoError(t, err)
	require.Len(t, clients, 2)

	assert.Equal(t, "eu-west-1", clients[0].Region)
	assert.Equal(t, "eu-west-1", clients[0].Client.Region)
	assert.Equal(t, "audit", clients[0].Client.AppID)
	assert.Equal(t, "us-east-1", clients[1].Region)
}

func TestClientsAllRegionsWhenUnscoped(t *testing.T) {
	clients, err := Clients(mustParse(t), "securityhub", testScope{partition: "aws"}, func(cfg aws.Config) string { return cfg.Region })
	require.NoError(t, err)

	var got []string
	for _, c := range clients {
		got = append(got, c.Client)
	}
	assert.Equal(t, []string{"ap-south-1", "eu-west-1", "us-east-1"}, got)
}

func TestClientsEmptyIntersection(t *testing.T) {
	clients, err := Clients(mustParse(t), "iam", testScope{partition: "aws", regions: []string{"eu-west-1"}}, func(aws.Config) int { return 0 })
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestClientsInDedupesAndSorts(t *testing.T) {
	session := aws.Config{Region: "us-east-1", AppID: "audit"}

	clients := ClientsIn(session, []string{"us-east-1", "", "eu-west-1", "us-east-1"}, func(cfg aws.Config) aws.Config { return cfg })
	require.Len(t, clients, 2)
	assert.Equal(t, "eu-west-1", clients[0].Region)
	assert.Equal(t, "eu-west-1", clients[0].Client.Region)
	assert.Equal(t, "audit", clients[0].Client.AppID)
	assert.Equal(t, "us-east-1", clients[1].Client.Region)
	assert.Equal(t, "us-east-1", session.Region)

	assert.Empty(t, ClientsIn(session, nil, func(aws.Config) int { return 0 }))
}

func TestResolveIsSubsetOfSupportedAndRequested(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	pool := []string{"us-east-1", "us-west-2", "eu-west-1", "cn-north-1", "us-gov-west-1", "mars-north-1"}

	for _, service := range c.ServiceNames() {
		for _, partition := range []string{"aws", "aws-cn", "aws-us-gov", "aws-iso"} {
			for i := 0; i < 20; i++ {
				var requested []string
				for _, r := range pool {
					if rng.IntN(2) == 0 {
						requested = append(requested, r)
					}
				}

				supported, err := c.SupportedRegions(service, partition)
				require.NoError(t, err)

				got, err := Resolve(c, service, partition, requested)
				require.NoError(t, err)
				for _, r := range got {
					assert.Contains(t, supported, r)
					if len(requested) > 0 {
						assert.True(t, slices.Contains(requested, r), "%s not requested", r)
					}
				}
			}
		}
	}
}
