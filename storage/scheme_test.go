// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestAppendURLParams(t *testing.T) {
	url, err := AppendURLParams("sqlite:///tmp/events.db", []lo.Tuple2[string, string]{
		{"_pragma", "busy_timeout(10000)"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/events.db?_pragma=busy_timeout%2810000%29", url)
}

func TestAppendMySQLParams(t *testing.T) {
	dsn, err := AppendMySQLParams("root:pass@tcp(localhost:3306)/events?sql_mode=ANSI", map[string]string{
		"sql_mode": "TRADITIONAL",
		"foo":      "bar",
	})
	assert.NoError(t, err)
	assert.Contains(t, dsn, "sql_mode=ANSI")
	assert.NotContains(t, dsn, "TRADITIONAL")
	assert.Contains(t, dsn, "foo=bar")
}

func TestIsDatabaseURL(t *testing.T) {
	assert.True(t, IsDatabaseURL("sqlite:///tmp/events.db"))
	assert.True(t, IsDatabaseURL("mysql://root@tcp(localhost:3306)/events"))
	assert.True(t, IsDatabaseURL("postgres://localhost/events"))
	assert.True(t, IsDatabaseURL("mongodb+srv://cluster/events"))
	assert.False(t, IsDatabaseURL("data/events.csv"))
}

func TestTablePrefix(t *testing.T) {
	assert.Equal(t, "test_events", TablePrefix("test_").EventsTable())
	assert.Equal(t, "events", TablePrefix("").EventsTable())
}
