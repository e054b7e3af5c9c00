//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of WDIShape.
//
// WDIShape is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// WDIShape is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with WDIShape. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/wdishape/core"
)

type mockS3Getter struct {
	objects map[string]string
	calls   []string
}

func (m *mockS3Getter) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	m.calls = append(m.calls, key)
	body, ok := m.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ETag:          aws.String(`"abc"`),
	}, nil
}

func TestS3Reader_ReadsObject(t *testing.T) {
	client := &mockS3Getter{objects: map[string]string{"wdi/data.csv": sampleCSV}}

	src, err := Open(context.Background(), "s3://wdi/data.csv", SourceOptions{
		S3: []ReaderOptionS3{WithS3Client(client)},
	})
	require.NoError(t, err)
	defer src.Close()

	rows, errs := readAll(t, src)
	require.Empty(t, errs)
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{"wdi/data.csv"}, client.calls)

	reader := src.(*S3Reader)
	stats := reader.Stats()
	assert.Equal(t, int64(3), stats.RowsRead)
	assert.Equal(t, int64(len(sampleCSV)), stats.ObjectSize)
}

func TestS3Reader_MissingKey(t *testing.T) {
	client := &mockS3Getter{objects: map[string]string{}}

	_, err := NewS3Reader(context.Background(), WithS3Bucket("wdi"), WithS3Key("nope.csv"), WithS3Client(client))
	var notFound *core.SourceNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "s3://wdi/nope.csv", notFound.Location)
}

func TestS3Reader_RequiresBucketAndKey(t *testing.T) {
	_, err := NewS3Reader(context.Background(), WithS3Bucket("wdi"))
	var readerErr *S3ReaderError
	require.True(t, errors.As(err, &readerErr))
	assert.Equal(t, "validate_options", readerErr.Op)
}

func TestS3Reader_PassesCSVOptions(t *testing.T) {
	client := &mockS3Getter{objects: map[string]string{"wdi/semi.csv": "WLD;USA;US;X;1\n"}}

	reader, err := NewS3Reader(context.Background(),
		WithS3Bucket("wdi"), WithS3Key("semi.csv"), WithS3Client(client),
		WithS3CSVOptions(WithCSVComma(';'), WithCSVSkipHeader(false)))
	require.NoError(t, err)

	rows, _ := readAll(t, reader)
	assert.Equal(t, []core.Row{{"WLD", "USA", "US", "X", "1"}}, rows)
}
