//go:build ignore

// Command generate-test-corpus writes a synthetic tree of Terraform provider
// docs and configurations for benchmarking `tfrag index`.
//
// Usage: go run scripts/generate-test-corpus.go -docs 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	numDocs   = flag.Int("docs", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Uint64("seed", 42, "Random seed for reproducibility")
	tfShare   = flag.Float64("tf", 0.25, "Fraction of documents written as .tf files")
)

var providers = map[string][]string{
	"aws":     {"s3_bucket", "iam_role", "instance", "vpc", "subnet", "security_group", "lambda_function", "rds_cluster", "eip", "route53_record"},
	"google":  {"compute_network", "compute_instance", "storage_bucket", "project_iam_member", "container_cluster", "sql_database_instance"},
	"azurerm": {"resource_group", "virtual_network", "storage_account", "kubernetes_cluster", "key_vault", "linux_virtual_machine"},
}

var argumentWords = []string{
	"name", "tags", "region", "zone", "policy", "versioning", "lifecycle_rule", "encryption",
	"subnet_ids", "cidr_block", "description", "labels", "timeouts", "depends_on", "count",
	"for_each", "provider", "kms_key_id", "logging", "replication", "retention_days",
}

var sentences = []string{
	"This argument is optional and defaults to the provider setting.",
	"Changing this forces a new resource to be created.",
	"Conflicts with the inline block of the same name.",
	"Valid values are documented in the upstream API reference.",
	"The value is exported as an attribute after apply.",
	"Use a separate resource to manage this setting when importing existing infrastructure.",
	"Requires provider version 5.0 or later.",
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

	names := make([]string, 0, len(providers))
	for p := range providers {
		names = append(names, p)
	}
	// Map iteration order is random; sort for reproducible output.
	slices.Sort(names)

	for i := range *numDocs {
		provider := names[r.IntN(len(names))]
		resources := providers[provider]
		resource := provider + "_" + resources[r.IntN(len(resources))]

		var rel, body string
		if r.Float64() < *tfShare {
			rel = filepath.Join(provider, "examples", fmt.Sprintf("%s_%04d.tf", resource, i))
			body = terraformFile(r, resource)
		} else {
			rel = filepath.Join(provider, "r", fmt.Sprintf("%s_%04d.md", resource, i))
			body = markdownDoc(r, resource)
		}

		path := filepath.Join(*outputDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Generated %d documents in %s\n", *numDocs, *outputDir)
}

func markdownDoc(r *rand.Rand, resource string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "---\nsubcategory: \"%s\"\n---\n\n# Resource: %s\n\n", strings.SplitN(resource, "_", 2)[0], resource)
	fmt.Fprintf(&sb, "Provides a %s resource.\n\n## Example Usage\n\n```terraform\n%s```\n\n", strings.ReplaceAll(resource, "_", " "), terraformFile(r, resource))
	sb.WriteString("## Argument Reference\n\nThe following arguments are supported:\n\n")
	for range 3 + r.IntN(12) {
		arg := argumentWords[r.IntN(len(argumentWords))]
		fmt.Fprintf(&sb, "* `%s` - (Optional) %s\n", arg, sentences[r.IntN(len(sentences))])
	}
	sb.WriteString("\n## Attribute Reference\n\n* `id` - The resource identifier.\n* `arn` - The resource ARN.\n")
	return sb.String()
}

func terraformFile(r *rand.Rand, resource string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "resource %q \"example\" {\n", resource)
	for range 2 + r.IntN(5) {
		arg := argumentWords[r.IntN(len(argumentWords))]
		fmt.Fprintf(&sb, "  %-16s = \"value-%d\"\n", arg, r.IntN(1000))
	}
	sb.WriteString("}\n")
	return sb.String()
}
