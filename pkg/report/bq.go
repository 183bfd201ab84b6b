// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/modelbench/modelbench/pkg/perf"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// Export uploads the records to a BigQuery table, creating the table with a
// schema inferred from the record type when it does not exist yet. Column
// names match the perf.csv header.
func Export(ctx context.Context, project, dataset, table string, records []perf.Record) error {
	client, err := bigquery.NewClient(ctx, project, option.WithQuotaProject(project))
	if err != nil {
		return errors.Wrap(err, "creating bigquery client")
	}
	defer client.Close()
	t := client.Dataset(dataset).Table(table)
	if _, err := t.Metadata(ctx); err != nil {
		schema, err := bigquery.InferSchema(perf.Record{})
		if err != nil {
			return errors.Wrap(err, "inferring schema")
		}
		if err := t.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return errors.Wrapf(err, "creating table %s.%s", dataset, table)
		}
	}
	if err := t.Inserter().Put(ctx, records); err != nil {
		return errors.Wrap(err, "inserting records")
	}
	return nil
}
