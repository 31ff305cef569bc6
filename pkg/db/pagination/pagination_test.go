package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", ReadingAt: "2019-04-22T09:24:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)
	assert.Equal(t, "2019-04-22T09:24:00Z", cursor.ReadingAt)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
}

func TestBuildCursorPageInfo(t *testing.T) {
	extract := func(v int) Cursor { return Cursor{ID: strconv.Itoa(v)} }

	page, info, err := BuildCursorPageInfo([]int{1, 2, 3}, 3, extract)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, page)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	page, info, err = BuildCursorPageInfo([]int{1, 2, 3, 4}, 3, extract)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, page)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "3", cursor.ID)
}
