// Package reminder defines reminder and group records, their derived
// lifecycle status, daily active windows and the error kinds shared by the
// scheduling service.
package reminder
