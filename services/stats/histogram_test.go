// Copyright (C) 2026 the femr authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramMerge(t *testing.T) {
	a := Histogram{0: 1, 3: 2}
	b := Histogram{3: 1, 7: 4}

	a.Merge(b)
	assert.Equal(t, Histogram{0: 1, 3: 3, 7: 4}, a)
	assert.Equal(t, Histogram{3: 1, 7: 4}, b, "merge source unchanged")
}

func TestHistogramTotal(t *testing.T) {
	assert.EqualValues(t, 0, Histogram{}.Total())
	assert.EqualValues(t, 8, Histogram{0: 1, 3: 3, 7: 4}.Total())
}

// TestHistogramMarshalNumericOrder pins numeric rather than lexical key
// ordering ("2" before "10").
func TestHistogramMarshalNumericOrder(t *testing.T) {
	data, err := Histogram{10: 1, 2: 1}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"2":1,"10":1}`, string(data))
}
