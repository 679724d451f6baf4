// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides HTTP request handlers for the gateway service.
//
// This file implements secure accumulation of streamed assistant replies.
// Content fragments are held in mlocked memory until the reply is persisted,
// preventing founder conversations (which often contain cap tables, legal
// exposure, unreleased terms) from being swapped to disk mid-stream. The
// reply is incrementally hashed as fragments arrive so the stored message
// can carry an integrity digest.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// SecureBufferSize is the size of the mlocked buffer for reply accumulation.
	// 512 KB comfortably holds a 4096-token reply with room to spare; replies
	// are capped upstream by the max_output_tokens sent to the provider.
	SecureBufferSize = 512 * 1024 // 512 KB

	// MinMlockLimitKB is the minimum mlock limit required in kilobytes.
	MinMlockLimitKB = 512
)

// insecureMemoryEnv, when set to "true", allows falling back to ordinary Go
// memory on systems whose mlock limit is below MinMlockLimitKB.
const insecureMemoryEnv = "FOUNDER_INSECURE_MEMORY"

// =============================================================================
// Package Variables
// =============================================================================

var (
	// memguardInitOnce ensures memguard initialization happens only once.
	memguardInitOnce sync.Once

	// mlockSufficient is set during initialization to indicate if secure memory is available.
	mlockSufficient bool

	// currentMlockLimitKB stores the current mlock limit for logging.
	currentMlockLimitKB int64
)

// =============================================================================
// Interfaces
// =============================================================================

// ReplyAccumulator defines the contract for accumulating a streamed reply.
//
// # Description
//
// ReplyAccumulator abstracts reply storage during chat streaming, allowing
// different implementations (secure/insecure) based on system capabilities.
// Fragments are hashed incrementally as they arrive, so the digest never
// requires a second pass over the plaintext.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
//
// # Examples
//
//	acc, err := NewSecureReplyAccumulator()
//	if err != nil {
//	    return err
//	}
//	defer acc.Destroy()
//
//	acc.Write("Hello ")
//	acc.Write("world!")
//	reply, digest, _ := acc.Finalize()
//
// # Limitations
//
//   - Buffer size is fixed (cannot grow dynamically)
//   - Accumulator cannot be reused after Finalize() or Destroy()
type ReplyAccumulator interface {
	// Write appends a content fragment to the accumulator.
	//
	// # Inputs
	//
	//   - fragment: Fragment text to append (must be valid UTF-8)
	//
	// # Outputs
	//
	//   - error: Non-nil if accumulation failed (e.g., buffer overflow)
	//
	// # Limitations
	//
	//   - Cannot write after Destroy() or Finalize()
	//   - Cannot recover from overflow
	Write(fragment string) error

	// Finalize returns the accumulated reply and its digest, then wipes memory.
	//
	// # Description
	//
	// Extracts the complete reply string and SHA-256 digest, then securely
	// wipes the buffer. After calling Finalize(), the accumulator cannot be
	// reused.
	//
	// # Outputs
	//
	//   - reply: Complete accumulated reply text
	//   - digest: SHA-256 of the reply (hex encoded, 64 characters)
	//   - error: Non-nil if finalization failed
	Finalize() (reply string, digest string, err error)

	// Destroy wipes memory without returning data.
	//
	// # Description
	//
	// Use this to clean up on error paths where the accumulated reply is not
	// needed. Safe to call multiple times (idempotent).
	Destroy()

	// ID returns a unique identifier for this accumulator instance,
	// used in logs to correlate a stream with its accumulator.
	ID() string

	// CreatedAt returns when this accumulator was created.
	CreatedAt() time.Time
}

// =============================================================================
// Structs: Secure Implementation
// =============================================================================

// secureReplyAccumulator stores the reply in mlocked memory with incremental hashing.
//
// # Description
//
// Uses a memguard LockedBuffer for in-memory storage of the streamed reply.
// Memory protections include:
//   - Locked (mlock) to prevent swapping to disk
//   - Guard pages to detect buffer overflows
//   - Canary values to detect buffer underflows
//   - Explicit zeroing on Destroy() to prevent memory forensics
//   - Incremental SHA-256 hashing as fragments arrive
//
// # Fields
//
//   - id: Unique identifier for this accumulator instance
//   - createdAt: When the accumulator was created
//   - mu: Mutex for thread safety
//   - buffer: memguard LockedBuffer for secure storage
//   - offset: Current write position in buffer
//   - hasher: Incremental SHA-256 hasher
//   - overflow: Set if buffer capacity exceeded
//   - destroyed: Set after Destroy() or Finalize() called
//
// # Thread Safety
//
// Safe for concurrent use. Uses mutex to protect internal state.
//
// # System Requirements
//
// Requires mlock limit >= SecureBufferSize (512 KB).
type secureReplyAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

// =============================================================================
// Structs: Insecure Fallback Implementation
// =============================================================================

// insecureReplyAccumulator is a fallback for systems without sufficient mlock.
//
// # Description
//
// Provides the same interface as secureReplyAccumulator but uses standard
// Go memory ([]byte). This is used when mlock limits are insufficient and
// FOUNDER_INSECURE_MEMORY=true is set.
//
// # Security Warning
//
// This implementation does NOT provide the guarantees of the secure version.
// Reply data may be swapped to disk and is not protected by guard pages.
//
// # Thread Safety
//
// Safe for concurrent use.
type insecureReplyAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	data      []byte
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

// =============================================================================
// Constructor Functions
// =============================================================================

// NewSecureReplyAccumulator creates a new secure reply accumulator.
//
// # Description
//
// Allocates a mlocked buffer of SecureBufferSize bytes for the streamed
// reply. If the mlock limit is insufficient and FOUNDER_INSECURE_MEMORY is
// not set, returns an error. If FOUNDER_INSECURE_MEMORY=true, falls back to
// the insecure accumulator with a warning.
//
// # Outputs
//
//   - ReplyAccumulator: Ready for use (secure or insecure based on system)
//   - error: Non-nil if allocation failed and no fallback available
//
// # Examples
//
//	acc, err := NewSecureReplyAccumulator()
//	if err != nil {
//	    return err
//	}
//	defer acc.Destroy()
//
// # Limitations
//
//   - May return an insecure accumulator if mlock limits are insufficient
func NewSecureReplyAccumulator() (ReplyAccumulator, error) {
	initMemguard()

	if !mlockSufficient {
		return handleInsufficientMlock()
	}

	return allocateSecureBuffer()
}

// newInsecureReplyAccumulator creates an insecure fallback accumulator.
//
// # Description
//
// Creates a reply accumulator using standard Go memory instead of mlocked
// memory. Used when secure memory is unavailable and the operator has
// acknowledged the risk via FOUNDER_INSECURE_MEMORY.
func newInsecureReplyAccumulator() ReplyAccumulator {
	accID := uuid.New().String()

	slog.Warn("Created INSECURE reply accumulator - data may be swapped to disk",
		"accumulator_id", accID,
	)

	return &insecureReplyAccumulator{
		id:        accID,
		createdAt: time.Now(),
		data:      make([]byte, 0, SecureBufferSize),
		hasher:    sha256.New(),
		overflow:  false,
		destroyed: false,
	}
}

// =============================================================================
// secureReplyAccumulator Methods
// =============================================================================

// Write appends a content fragment to the secure buffer.
//
// # Description
//
// Copies fragment bytes into the mlocked buffer and updates the incremental
// hash. If the buffer would overflow, sets the overflow flag and returns an
// error. Fragments are hashed immediately as they arrive.
//
// # Inputs
//
//   - fragment: Fragment text to append
//
// # Outputs
//
//   - error: Non-nil if buffer overflow would occur or accumulator destroyed
func (a *secureReplyAccumulator) Write(fragment string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.validateWriteState(); err != nil {
		return err
	}

	fragmentBytes := []byte(fragment)

	if err := a.checkBufferCapacity(len(fragmentBytes)); err != nil {
		return err
	}

	a.copyToBuffer(fragmentBytes)
	a.updateHash(fragmentBytes)

	return nil
}

// Finalize returns the accumulated reply and its digest, then wipes the buffer.
//
// # Description
//
// Extracts the complete reply string and SHA-256 digest from the secure
// buffer, then wipes the buffer memory. After calling Finalize(), the
// accumulator cannot be reused.
//
// # Outputs
//
//   - reply: Complete accumulated reply (copy of secure buffer contents)
//   - digest: SHA-256 of the reply (hex encoded, 64 characters)
//   - error: Non-nil if overflow occurred or accumulator already destroyed
func (a *secureReplyAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.validateFinalizeState(); err != nil {
		return "", "", err
	}

	reply := a.extractReply()
	digest := a.finalizeHash()
	a.wipeBuffer()

	a.logFinalization(len(reply), digest)

	return reply, digest, nil
}

// Destroy wipes the buffer without returning data. Idempotent.
func (a *secureReplyAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}

	a.wipeBuffer()
	a.logDestruction()
}

// ID returns the unique identifier for this accumulator instance.
func (a *secureReplyAccumulator) ID() string {
	return a.id
}

// CreatedAt returns when this accumulator was created.
func (a *secureReplyAccumulator) CreatedAt() time.Time {
	return a.createdAt
}

// =============================================================================
// secureReplyAccumulator Private Methods
// =============================================================================

// validateWriteState checks if the accumulator is in a valid state for writing.
func (a *secureReplyAccumulator) validateWriteState() error {
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("secure buffer overflow - reply too large")
	}
	return nil
}

// checkBufferCapacity verifies there is room for the fragment.
func (a *secureReplyAccumulator) checkBufferCapacity(fragmentLen int) error {
	if a.offset+fragmentLen > SecureBufferSize {
		a.overflow = true
		return fmt.Errorf("secure buffer overflow: need %d bytes, have %d remaining",
			fragmentLen, SecureBufferSize-a.offset)
	}
	return nil
}

// copyToBuffer copies fragment bytes into the secure buffer.
func (a *secureReplyAccumulator) copyToBuffer(fragmentBytes []byte) {
	copy(a.buffer.Bytes()[a.offset:], fragmentBytes)
	a.offset += len(fragmentBytes)
}

// updateHash adds fragment bytes to the incremental hash.
func (a *secureReplyAccumulator) updateHash(fragmentBytes []byte) {
	a.hasher.Write(fragmentBytes)
}

// validateFinalizeState checks if the accumulator can be finalized.
func (a *secureReplyAccumulator) validateFinalizeState() error {
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipeBuffer()
		return fmt.Errorf("buffer overflowed during accumulation")
	}
	return nil
}

// extractReply copies the reply out of secure memory.
func (a *secureReplyAccumulator) extractReply() string {
	return string(a.buffer.Bytes()[:a.offset])
}

// finalizeHash returns the final digest as a hex string.
func (a *secureReplyAccumulator) finalizeHash() string {
	hashBytes := a.hasher.Sum(nil)
	return hex.EncodeToString(hashBytes)
}

// wipeBuffer destroys the secure buffer and marks as destroyed.
func (a *secureReplyAccumulator) wipeBuffer() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.destroyed = true
}

// logFinalization logs successful finalization.
func (a *secureReplyAccumulator) logFinalization(replyLen int, digest string) {
	slog.Debug("Finalized secure reply accumulator",
		"accumulator_id", a.id,
		"reply_length", replyLen,
		"digest", digest[:16]+"...",
	)
}

// logDestruction logs accumulator destruction.
func (a *secureReplyAccumulator) logDestruction() {
	slog.Debug("Destroyed secure reply accumulator",
		"accumulator_id", a.id,
	)
}

// =============================================================================
// insecureReplyAccumulator Methods
// =============================================================================

// Write appends a content fragment to the insecure buffer.
func (a *insecureReplyAccumulator) Write(fragment string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.validateWriteState(); err != nil {
		return err
	}

	fragmentBytes := []byte(fragment)

	if err := a.checkBufferCapacity(len(fragmentBytes)); err != nil {
		return err
	}

	a.appendToData(fragmentBytes)
	a.updateHash(fragmentBytes)

	return nil
}

// Finalize returns the accumulated reply and digest, attempting to zero memory.
//
// # Limitations
//
//   - Memory wiping is best-effort only; the garbage collector may have
//     copied the data already.
func (a *insecureReplyAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.validateFinalizeState(); err != nil {
		return "", "", err
	}

	reply := string(a.data)
	digest := a.finalizeHash()
	a.wipeData()

	a.logFinalization(len(reply))

	return reply, digest, nil
}

// Destroy attempts to wipe memory (best effort). Idempotent.
func (a *insecureReplyAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}

	a.wipeData()
	a.logDestruction()
}

// ID returns the unique identifier for this accumulator instance.
func (a *insecureReplyAccumulator) ID() string {
	return a.id
}

// CreatedAt returns when this accumulator was created.
func (a *insecureReplyAccumulator) CreatedAt() time.Time {
	return a.createdAt
}

// =============================================================================
// insecureReplyAccumulator Private Methods
// =============================================================================

// validateWriteState checks if the accumulator is in a valid state for writing.
func (a *insecureReplyAccumulator) validateWriteState() error {
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("buffer overflow - reply too large")
	}
	return nil
}

// checkBufferCapacity verifies there is room for the fragment.
func (a *insecureReplyAccumulator) checkBufferCapacity(fragmentLen int) error {
	if len(a.data)+fragmentLen > SecureBufferSize {
		a.overflow = true
		return fmt.Errorf("buffer overflow: need %d bytes, have %d remaining",
			fragmentLen, SecureBufferSize-len(a.data))
	}
	return nil
}

// appendToData appends fragment bytes to the data slice.
func (a *insecureReplyAccumulator) appendToData(fragmentBytes []byte) {
	a.data = append(a.data, fragmentBytes...)
}

// updateHash adds fragment bytes to the incremental hash.
func (a *insecureReplyAccumulator) updateHash(fragmentBytes []byte) {
	a.hasher.Write(fragmentBytes)
}

// validateFinalizeState checks if the accumulator can be finalized.
func (a *insecureReplyAccumulator) validateFinalizeState() error {
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipeData()
		return fmt.Errorf("buffer overflowed during accumulation")
	}
	return nil
}

// finalizeHash returns the final digest as a hex string.
func (a *insecureReplyAccumulator) finalizeHash() string {
	hashBytes := a.hasher.Sum(nil)
	return hex.EncodeToString(hashBytes)
}

// wipeData zeros the data slice (best effort).
func (a *insecureReplyAccumulator) wipeData() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}

// logFinalization logs successful finalization.
func (a *insecureReplyAccumulator) logFinalization(replyLen int) {
	slog.Debug("Finalized insecure reply accumulator",
		"accumulator_id", a.id,
		"reply_length", replyLen,
	)
}

// logDestruction logs accumulator destruction.
func (a *insecureReplyAccumulator) logDestruction() {
	slog.Debug("Destroyed insecure reply accumulator",
		"accumulator_id", a.id,
	)
}

// =============================================================================
// Package Initialization Functions
// =============================================================================

// initMemguard initializes the memguard library and checks mlock limits.
//
// # Description
//
// Performs one-time initialization of memguard and validates that the system
// has sufficient mlock limits for secure memory operations. Called
// automatically when creating the first accumulator.
//
// # Outputs
//
// None. Sets package-level variables mlockSufficient and currentMlockLimitKB.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		logMlockStatus()
	})
}

// checkMlockLimit checks if the system has sufficient mlock limits.
//
// # Description
//
// Queries the kernel for the current mlock resource limit and compares
// it against the minimum required for secure reply accumulation.
//
// # Outputs
//
//   - bool: True if limit is sufficient (>= MinMlockLimitKB)
//   - int64: Current limit in kilobytes (-1 if unlimited)
//
// # Limitations
//
//   - Only works on Unix-like systems (Linux, macOS, BSD)
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}

	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}

	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// logMlockStatus logs the current mlock status.
func logMlockStatus() {
	if mlockSufficient {
		slog.Info("Secure memory initialized",
			"mlock_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"status", "sufficient",
		)
	} else {
		logInsufficientMlock()
	}
}

// logInsufficientMlock logs a warning about insufficient mlock limits.
func logInsufficientMlock() {
	insecureMode := os.Getenv(insecureMemoryEnv) == "true"
	if insecureMode {
		slog.Warn("SECURITY: Running with insecure memory - mlock limit insufficient",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"env_override", insecureMemoryEnv+"=true",
		)
	} else {
		slog.Error("mlock limit insufficient for secure memory",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"help", "Raise the mlock ulimit or set "+insecureMemoryEnv+"=true",
		)
	}
}

// handleInsufficientMlock handles the case when mlock limits are insufficient.
func handleInsufficientMlock() (ReplyAccumulator, error) {
	if os.Getenv(insecureMemoryEnv) == "true" {
		slog.Warn("Using insecure reply accumulator due to mlock limits",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
		)
		return newInsecureReplyAccumulator(), nil
	}
	return nil, fmt.Errorf(
		"mlock limit insufficient: have %d KB, need %d KB. "+
			"Configure system limits or set %s=true",
		currentMlockLimitKB, MinMlockLimitKB, insecureMemoryEnv,
	)
}

// allocateSecureBuffer allocates a new secure buffer.
func allocateSecureBuffer() (ReplyAccumulator, error) {
	buf := memguard.NewBuffer(SecureBufferSize)
	if buf == nil {
		return nil, fmt.Errorf("failed to allocate secure buffer of %d bytes", SecureBufferSize)
	}
	buf.Melt()

	accID := uuid.New().String()

	slog.Debug("Created secure reply accumulator",
		"accumulator_id", accID,
		"buffer_size", SecureBufferSize,
	)

	return &secureReplyAccumulator{
		id:        accID,
		createdAt: time.Now(),
		buffer:    buf,
		offset:    0,
		hasher:    sha256.New(),
		overflow:  false,
		destroyed: false,
	}, nil
}

// =============================================================================
// Utility Functions
// =============================================================================

// IsMlockAvailable returns whether secure memory is available on this system.
//
// # Outputs
//
//   - bool: True if secure memory is available
//   - int64: Current mlock limit in KB (-1 if unlimited)
//
// # Limitations
//
//   - Result may change if system limits are modified
func IsMlockAvailable() (bool, int64) {
	initMemguard()
	return mlockSufficient, currentMlockLimitKB
}

// PurgeAllSecureMemory wipes all memguard-allocated memory.
//
// # Description
//
// Should be called during graceful shutdown to ensure all sensitive data
// is wiped from memory. This is automatically called on SIGINT/SIGTERM
// if memguard.CatchInterrupt() was called.
//
// # Limitations
//
//   - After calling this, all existing LockedBuffers are invalid
func PurgeAllSecureMemory() {
	memguard.Purge()
	slog.Info("Purged all secure memory")
}
