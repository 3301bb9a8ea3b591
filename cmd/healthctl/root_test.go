package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])
	assert.True(t, names["dlq"])

	retry, _, err := rootCmd.Find([]string{"dlq", "retry"})
	require.NoError(t, err)
	assert.Equal(t, "retry", retry.Name())
	assert.NotNil(t, retry.Flags().Lookup("watch"))
	assert.Equal(t, "50", retry.Flags().Lookup("batch-size").DefValue)
}

func TestDLQRetryRejectsNonPositiveBatch(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"dlq", "retry", "--batch-size", "0"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		dlqBatchSize = defaultDLQBatchSize
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--batch-size must be positive")
}
