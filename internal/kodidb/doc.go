// Package kodidb reads and updates per-file playback settings in a Kodi
// MyVideos database. It touches only the movie, settings, and
// streamdetails tables and never alters the database's journal mode.
package kodidb
