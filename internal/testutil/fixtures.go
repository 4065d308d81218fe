package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// Bool returns a pointer to b, for core.Rule.Enabled.
func Bool(b bool) *bool {
	return &b
}

// JaffleShop returns a small fixture project:
//
//	stg_customers  no meta, unique+not_null on customer_id
//	stg_orders     owner, tagged staging
//	fct_orders     owner, primary_key, tagged fact, unique on order_id
//	dim_customers  owner, tagged finance
func JaffleShop() []*core.Model {
	return []*core.Model{
		{
			Name: "stg_customers", ProjectID: "jaffle_shop", UniqueID: "model.jaffle_shop.stg_customers",
			Path: "models/staging/stg_customers.sql",
			Tests: []core.TestDescriptor{
				{Type: "unique", Column: "customer_id"},
				{Type: "not_null", Column: "customer_id"},
			},
		},
		{
			Name: "stg_orders", ProjectID: "jaffle_shop", UniqueID: "model.jaffle_shop.stg_orders",
			Path: "models/staging/stg_orders.sql",
			Tags: []string{"staging"},
			Meta: map[string]any{"owner": "analytics"},
		},
		{
			Name: "fct_orders", ProjectID: "jaffle_shop", UniqueID: "model.jaffle_shop.fct_orders",
			Path: "models/marts/fct_orders.sql",
			Tags: []string{"fact"},
			Meta: map[string]any{"owner": "finance", "primary_key": "order_id"},
			Tests: []core.TestDescriptor{
				{Type: "unique", Column: "order_id"},
			},
		},
		{
			Name: "dim_customers", ProjectID: "jaffle_shop", UniqueID: "model.jaffle_shop.dim_customers",
			Path: "models/marts/dim_customers.sql",
			Tags: []string{"finance"},
			Meta: map[string]any{"owner": "finance"},
		},
	}
}

// WriteFile writes content to dir/name, creating parent directories,
// and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// JaffleShopManifest is a dbt manifest describing the JaffleShop models.
const JaffleShopManifest = `{
  "metadata": {"project_name": "jaffle_shop", "dbt_version": "1.8.7"},
  "nodes": {
    "model.jaffle_shop.stg_customers": {
      "unique_id": "model.jaffle_shop.stg_customers", "resource_type": "model",
      "name": "stg_customers", "package_name": "jaffle_shop",
      "original_file_path": "models/staging/stg_customers.sql"
    },
    "model.jaffle_shop.stg_orders": {
      "unique_id": "model.jaffle_shop.stg_orders", "resource_type": "model",
      "name": "stg_orders", "package_name": "jaffle_shop",
      "original_file_path": "models/staging/stg_orders.sql",
      "config": {"tags": ["staging"], "meta": {"owner": "analytics"}}
    },
    "model.jaffle_shop.fct_orders": {
      "unique_id": "model.jaffle_shop.fct_orders", "resource_type": "model",
      "name": "fct_orders", "package_name": "jaffle_shop",
      "original_file_path": "models/marts/fct_orders.sql",
      "config": {"tags": ["fact"], "meta": {"owner": "finance", "primary_key": "order_id"}}
    },
    "model.jaffle_shop.dim_customers": {
      "unique_id": "model.jaffle_shop.dim_customers", "resource_type": "model",
      "name": "dim_customers", "package_name": "jaffle_shop",
      "original_file_path": "models/marts/dim_customers.sql",
      "config": {"tags": ["finance"], "meta": {"owner": "finance"}}
    },
    "test.jaffle_shop.unique_stg_customers_customer_id": {
      "unique_id": "test.jaffle_shop.unique_stg_customers_customer_id", "resource_type": "test",
      "name": "unique_stg_customers_customer_id", "column_name": "customer_id",
      "attached_node": "model.jaffle_shop.stg_customers",
      "test_metadata": {"name": "unique"}
    },
    "test.jaffle_shop.not_null_stg_customers_customer_id": {
      "unique_id": "test.jaffle_shop.not_null_stg_customers_customer_id", "resource_type": "test",
      "name": "not_null_stg_customers_customer_id", "column_name": "customer_id",
      "attached_node": "model.jaffle_shop.stg_customers",
      "test_metadata": {"name": "not_null"}
    },
    "test.jaffle_shop.unique_fct_orders_order_id": {
      "unique_id": "test.jaffle_shop.unique_fct_orders_order_id", "resource_type": "test",
      "name": "unique_fct_orders_order_id", "column_name": "order_id",
      "attached_node": "model.jaffle_shop.fct_orders",
      "test_metadata": {"name": "unique"}
    }
  }
}`

// WriteProject lays out a dbt project with the JaffleShop manifest under
// dir/name and returns the project directory.
func WriteProject(t testing.TB, dir, name string) string {
	t.Helper()
	project := filepath.Join(dir, name)
	WriteFile(t, project, filepath.Join("target", "manifest.json"), JaffleShopManifest)
	return project
}
