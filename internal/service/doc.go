// Package service is the scheduling coordinator: every reminder and group
// operation goes through it so the job registry always matches the store.
//
// Store failures on the primary effect of an operation are returned. Registry
// failures on the secondary effect are logged; RestoreJobs reconciles them.
// Every mutation ends with a full snapshot write.
package service
