// Package feishu reads work items from a bitable and writes per-item status
// back after synthesis. The reference tables workers consult (accounts,
// voices, digital humans) are loaded once into a read-only snapshot before
// a batch starts.
package feishu
