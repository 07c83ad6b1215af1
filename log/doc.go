/*
Package log provides global output control for the whole agent. Logging comes in four
levels: Silent, Major, Minor and Debug, each more detailed than the previous. Levels are
inclusive, so setting MinorLevel implies MajorLevel logging as well.

Once command-line parsing has succeeded, all program output should go via this package.
The exception is start-up and shut-down messages which may be written directly, just in
case logging has been redirected to a null consumer.

The Print and Printf interfaces are close to their fmt namesakes with two differences
caused by line prefixing: multi-line output has every line prefixed for its level, and a
trailing newline is supplied rather than expected.

Specialist output functions outside this package should still write to log.Out() so that
tests can capture their output with SetOut().
*/
package log
