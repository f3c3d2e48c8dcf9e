// Package coze implements the HTTP client for the asynchronous
// workflow-execution API: submit a run, then poll its run history until the
// remote job reaches a terminal status. Raw remote status strings are mapped
// onto the closed jobs.State enumeration at this boundary so the rest of the
// pipeline never switches on text.
package coze
