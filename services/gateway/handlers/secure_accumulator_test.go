// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test: ReplyAccumulator Interface
// =============================================================================

// TestReplyAccumulator_Write_SingleFragment verifies basic fragment writing.
func TestReplyAccumulator_Write_SingleFragment(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	fragment := "Hello"
	err := acc.Write(fragment)
	require.NoError(t, err, "Write should succeed")

	reply, _, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")
	assert.Equal(t, fragment, reply, "Reply should match written fragment")
}

// TestReplyAccumulator_Write_MultipleFragments verifies sequential writing.
func TestReplyAccumulator_Write_MultipleFragments(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	fragments := []string{"Hello", " ", "world", "!"}
	expected := "Hello world!"

	for _, fragment := range fragments {
		err := acc.Write(fragment)
		require.NoError(t, err, "Write should succeed for fragment: %q", fragment)
	}

	reply, _, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")
	assert.Equal(t, expected, reply, "Reply should concatenate all fragments")
}

// TestReplyAccumulator_Write_EmptyFragment verifies empty fragment handling.
func TestReplyAccumulator_Write_EmptyFragment(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	err := acc.Write("")
	require.NoError(t, err, "Empty fragment write should succeed")

	err = acc.Write("Hello")
	require.NoError(t, err, "Write after empty should succeed")

	reply, _, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")
	assert.Equal(t, "Hello", reply, "Reply should only contain non-empty fragment")
}

// TestReplyAccumulator_Write_UnicodeFragments verifies UTF-8 handling.
func TestReplyAccumulator_Write_UnicodeFragments(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	fragments := []string{"こんにちは", " ", "世界", "! 🌍"}
	expected := "こんにちは 世界! 🌍"

	for _, fragment := range fragments {
		err := acc.Write(fragment)
		require.NoError(t, err, "Write should succeed for unicode fragment")
	}

	reply, _, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")
	assert.Equal(t, expected, reply, "Reply should preserve Unicode")
}

// TestReplyAccumulator_Write_AfterDestroy verifies destroyed state.
func TestReplyAccumulator_Write_AfterDestroy(t *testing.T) {
	acc := newTestAccumulator(t)
	acc.Destroy()

	err := acc.Write("Hello")
	assert.Error(t, err, "Write after Destroy should fail")
	assert.Contains(t, err.Error(), "destroyed", "Error should mention destroyed state")
}

// TestReplyAccumulator_Write_AfterFinalize verifies finalized state.
func TestReplyAccumulator_Write_AfterFinalize(t *testing.T) {
	acc := newTestAccumulator(t)
	_, _, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")

	err = acc.Write("Hello")
	assert.Error(t, err, "Write after Finalize should fail")
	assert.Contains(t, err.Error(), "destroyed", "Error should mention destroyed state")
}

// =============================================================================
// Test: Finalize
// =============================================================================

// TestReplyAccumulator_Finalize_ReturnsCorrectDigest verifies digest computation.
func TestReplyAccumulator_Finalize_ReturnsCorrectDigest(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	content := "Hello, World!"
	err := acc.Write(content)
	require.NoError(t, err, "Write should succeed")

	reply, digest, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")
	assert.Equal(t, content, reply, "Reply should match input")

	expectedHash := sha256.Sum256([]byte(content))
	expectedHashStr := hex.EncodeToString(expectedHash[:])
	assert.Equal(t, expectedHashStr, digest, "Digest should match SHA-256 of content")
}

// TestReplyAccumulator_Finalize_IncrementalDigestMatchesFinal verifies that
// incrementally hashing fragments matches hashing the final string.
func TestReplyAccumulator_Finalize_IncrementalDigestMatchesFinal(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	fragments := []string{"The ", "quick ", "brown ", "fox ", "jumps."}
	fullContent := "The quick brown fox jumps."

	for _, fragment := range fragments {
		err := acc.Write(fragment)
		require.NoError(t, err, "Write should succeed")
	}

	_, digest, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")

	expectedHash := sha256.Sum256([]byte(fullContent))
	expectedHashStr := hex.EncodeToString(expectedHash[:])

	assert.Equal(t, expectedHashStr, digest, "Incremental digest should match full content digest")
}

// TestReplyAccumulator_Finalize_DigestIs64Characters verifies digest format.
func TestReplyAccumulator_Finalize_DigestIs64Characters(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	err := acc.Write("test")
	require.NoError(t, err, "Write should succeed")

	_, digest, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")

	assert.Len(t, digest, 64, "SHA-256 hex digest should be 64 characters")

	_, err = hex.DecodeString(digest)
	assert.NoError(t, err, "Digest should be valid hex string")
}

// TestReplyAccumulator_Finalize_EmptyContent verifies empty accumulator handling.
func TestReplyAccumulator_Finalize_EmptyContent(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	reply, digest, err := acc.Finalize()
	require.NoError(t, err, "Finalize with no content should succeed")
	assert.Empty(t, reply, "Reply should be empty")

	expectedHash := sha256.Sum256([]byte(""))
	expectedHashStr := hex.EncodeToString(expectedHash[:])
	assert.Equal(t, expectedHashStr, digest, "Digest should match SHA-256 of empty string")
}

// TestReplyAccumulator_Finalize_CannotCallTwice verifies single-use nature.
func TestReplyAccumulator_Finalize_CannotCallTwice(t *testing.T) {
	acc := newTestAccumulator(t)

	err := acc.Write("Hello")
	require.NoError(t, err, "Write should succeed")

	_, _, err = acc.Finalize()
	require.NoError(t, err, "First Finalize should succeed")

	_, _, err = acc.Finalize()
	assert.Error(t, err, "Second Finalize should fail")
	assert.Contains(t, err.Error(), "destroyed", "Error should mention destroyed state")
}

// =============================================================================
// Test: Destroy
// =============================================================================

// TestReplyAccumulator_Destroy_IsIdempotent verifies idempotent destruction.
func TestReplyAccumulator_Destroy_IsIdempotent(t *testing.T) {
	acc := newTestAccumulator(t)

	err := acc.Write("Hello")
	require.NoError(t, err, "Write should succeed")

	// Multiple destroys should not panic
	acc.Destroy()
	acc.Destroy()
	acc.Destroy()
}

// TestReplyAccumulator_Destroy_PreventsSubsequentOperations verifies cleanup.
func TestReplyAccumulator_Destroy_PreventsSubsequentOperations(t *testing.T) {
	acc := newTestAccumulator(t)
	acc.Destroy()

	err := acc.Write("Hello")
	assert.Error(t, err, "Write after Destroy should fail")

	_, _, err = acc.Finalize()
	assert.Error(t, err, "Finalize after Destroy should fail")
}

// =============================================================================
// Test: ID and CreatedAt
// =============================================================================

// TestReplyAccumulator_ID_IsValidUUID verifies ID format.
func TestReplyAccumulator_ID_IsValidUUID(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	id := acc.ID()
	assert.NotEmpty(t, id, "ID should not be empty")

	_, err := uuid.Parse(id)
	assert.NoError(t, err, "ID should be a valid UUID")
}

// TestReplyAccumulator_ID_UniquePerInstance verifies ID uniqueness.
func TestReplyAccumulator_ID_UniquePerInstance(t *testing.T) {
	acc1 := newTestAccumulator(t)
	defer acc1.Destroy()

	acc2 := newTestAccumulator(t)
	defer acc2.Destroy()

	assert.NotEqual(t, acc1.ID(), acc2.ID(), "Each accumulator should have a unique ID")
}

// TestReplyAccumulator_CreatedAt_IsRecent verifies timestamp accuracy.
func TestReplyAccumulator_CreatedAt_IsRecent(t *testing.T) {
	before := time.Now()

	acc := newTestAccumulator(t)
	defer acc.Destroy()

	after := time.Now()

	createdAt := acc.CreatedAt()
	assert.True(t, createdAt.After(before) || createdAt.Equal(before),
		"CreatedAt should be after or equal to test start time")
	assert.True(t, createdAt.Before(after) || createdAt.Equal(after),
		"CreatedAt should be before or equal to test end time")
}

// =============================================================================
// Test: Buffer Overflow
// =============================================================================

// TestReplyAccumulator_Write_Overflow verifies overflow handling.
func TestReplyAccumulator_Write_Overflow(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	oversized := make([]byte, SecureBufferSize+1)
	for i := range oversized {
		oversized[i] = 'A'
	}

	err := acc.Write(string(oversized))
	assert.Error(t, err, "Write should fail when exceeding buffer size")
	assert.Contains(t, err.Error(), "overflow", "Error should mention overflow")
}

// TestReplyAccumulator_Write_GradualOverflow verifies cumulative overflow.
func TestReplyAccumulator_Write_GradualOverflow(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	chunk := make([]byte, 1024)
	for i := range chunk {
		chunk[i] = 'X'
	}

	var err error
	for i := 0; i < SecureBufferSize/1024+10; i++ {
		err = acc.Write(string(chunk))
		if err != nil {
			break
		}
	}

	assert.Error(t, err, "Should eventually overflow")
	assert.Contains(t, err.Error(), "overflow", "Error should mention overflow")
}

// TestReplyAccumulator_Finalize_AfterOverflow verifies overflow state.
func TestReplyAccumulator_Finalize_AfterOverflow(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	oversized := make([]byte, SecureBufferSize+1)
	for i := range oversized {
		oversized[i] = 'A'
	}
	_ = acc.Write(string(oversized))

	_, _, err := acc.Finalize()
	assert.Error(t, err, "Finalize after overflow should fail")
}

// =============================================================================
// Test: Concurrency
// =============================================================================

// TestReplyAccumulator_Concurrent_WritesAreSafe verifies thread safety.
func TestReplyAccumulator_Concurrent_WritesAreSafe(t *testing.T) {
	acc := newTestAccumulator(t)
	defer acc.Destroy()

	numWriters := 10
	fragmentsPerWriter := 100

	var wg sync.WaitGroup
	wg.Add(numWriters)

	for i := 0; i < numWriters; i++ {
		go func(writerID int) {
			defer wg.Done()
			for j := 0; j < fragmentsPerWriter; j++ {
				fragment := fmt.Sprintf("[%d:%d]", writerID, j)
				_ = acc.Write(fragment)
			}
		}(i)
	}

	wg.Wait()

	reply, digest, err := acc.Finalize()
	assert.NoError(t, err, "Finalize should succeed after concurrent writes")
	assert.NotEmpty(t, reply, "Should have accumulated data")
	assert.Len(t, digest, 64, "Digest should be valid")
}

// TestReplyAccumulator_Concurrent_WriteAndDestroy verifies race safety.
func TestReplyAccumulator_Concurrent_WriteAndDestroy(t *testing.T) {
	for i := 0; i < 100; i++ {
		acc := newTestAccumulator(t)

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = acc.Write("fragment")
			}
		}()

		go func() {
			defer wg.Done()
			time.Sleep(time.Microsecond * 10)
			acc.Destroy()
		}()

		wg.Wait()
	}
}

// =============================================================================
// Test: Insecure Accumulator Fallback
// =============================================================================

// TestInsecureAccumulator_FallbackWorks verifies the insecure fallback path
// used when mlock limits are too low and the operator opted in.
func TestInsecureAccumulator_FallbackWorks(t *testing.T) {
	original := os.Getenv(insecureMemoryEnv)
	os.Setenv(insecureMemoryEnv, "true")
	defer os.Setenv(insecureMemoryEnv, original)

	acc := newInsecureReplyAccumulator()
	defer acc.Destroy()

	err := acc.Write("Hello")
	require.NoError(t, err, "Write should succeed")

	err = acc.Write(" World")
	require.NoError(t, err, "Second write should succeed")

	reply, digest, err := acc.Finalize()
	require.NoError(t, err, "Finalize should succeed")

	assert.Equal(t, "Hello World", reply, "Reply should be correct")

	expectedHash := sha256.Sum256([]byte("Hello World"))
	expectedHashStr := hex.EncodeToString(expectedHash[:])
	assert.Equal(t, expectedHashStr, digest, "Digest should be correct")
}

// TestInsecureAccumulator_HasUniqueID verifies insecure accumulator IDs.
func TestInsecureAccumulator_HasUniqueID(t *testing.T) {
	acc1 := newInsecureReplyAccumulator()
	defer acc1.Destroy()

	acc2 := newInsecureReplyAccumulator()
	defer acc2.Destroy()

	assert.NotEqual(t, acc1.ID(), acc2.ID(), "Each accumulator should have unique ID")

	_, err := uuid.Parse(acc1.ID())
	assert.NoError(t, err, "ID should be valid UUID")
}

// =============================================================================
// Test: Utility Functions
// =============================================================================

// TestIsMlockAvailable_ReturnsConsistentResults verifies utility function.
func TestIsMlockAvailable_ReturnsConsistentResults(t *testing.T) {
	available1, limit1 := IsMlockAvailable()
	available2, limit2 := IsMlockAvailable()

	assert.Equal(t, available1, available2, "Availability should be consistent")
	assert.Equal(t, limit1, limit2, "Limit should be consistent")
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestAccumulator creates an accumulator for testing. If secure memory is
// not available it falls back to the insecure variant so CI environments
// without mlock headroom still exercise the accumulation logic.
func newTestAccumulator(t *testing.T) ReplyAccumulator {
	t.Helper()

	acc, err := NewSecureReplyAccumulator()
	if err == nil {
		return acc
	}

	t.Logf("Falling back to insecure accumulator: %v", err)
	return newInsecureReplyAccumulator()
}
